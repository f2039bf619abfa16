package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePaymentSplit(t *testing.T) {
	split, err := ParsePaymentSplit(map[string]string{
		MetaBookingID:     "bk_1",
		MetaPlatformFee:   "7",
		MetaCreatorAmount: "63",
	})
	require.NoError(t, err)
	require.Equal(t, "bk_1", split.BookingID)
	require.Equal(t, "7.00", split.PlatformFee.StringFixed(2))
	require.Equal(t, "63.00", split.CreatorAmount.StringFixed(2))
	require.Equal(t, "70.00", split.Total().StringFixed(2))
}

func TestParsePaymentSplit_TrailingZerosAreCents(t *testing.T) {
	split, err := ParsePaymentSplit(map[string]string{
		MetaBookingID:     "bk_1",
		MetaPlatformFee:   "7.000",
		MetaCreatorAmount: "63.50",
	})
	require.NoError(t, err)
	require.Equal(t, "70.50", split.Total().StringFixed(2))
}

func TestParsePaymentSplit_Rejects(t *testing.T) {
	cases := map[string]struct {
		metadata map[string]string
		want     error
	}{
		"missing booking": {
			metadata: map[string]string{MetaPlatformFee: "7", MetaCreatorAmount: "63"},
			want:     ErrMissingMetadata,
		},
		"missing fee": {
			metadata: map[string]string{MetaBookingID: "bk", MetaCreatorAmount: "63"},
			want:     ErrMissingMetadata,
		},
		"blank creator amount": {
			metadata: map[string]string{MetaBookingID: "bk", MetaPlatformFee: "7", MetaCreatorAmount: "  "},
			want:     ErrMissingMetadata,
		},
		"non numeric": {
			metadata: map[string]string{MetaBookingID: "bk", MetaPlatformFee: "seven", MetaCreatorAmount: "63"},
			want:     ErrInvalidAmount,
		},
		"negative": {
			metadata: map[string]string{MetaBookingID: "bk", MetaPlatformFee: "7", MetaCreatorAmount: "-1"},
			want:     ErrInvalidAmount,
		},
		"sub-cent fee": {
			metadata: map[string]string{MetaBookingID: "bk", MetaPlatformFee: "7.004", MetaCreatorAmount: "63"},
			want:     ErrInvalidAmount,
		},
		"sub-cent creator amount": {
			metadata: map[string]string{MetaBookingID: "bk", MetaPlatformFee: "7", MetaCreatorAmount: "62.996"},
			want:     ErrInvalidAmount,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePaymentSplit(tc.metadata)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPayoutRequestIDFrom(t *testing.T) {
	require.Equal(t, "pr_1", PayoutRequestIDFrom(map[string]string{MetaPayoutRequestID: " pr_1 "}))
	require.Empty(t, PayoutRequestIDFrom(nil))
}

func TestIsDebtRecovery(t *testing.T) {
	require.True(t, IsDebtRecovery(map[string]string{MetaDebtRecovery: "true"}))
	require.False(t, IsDebtRecovery(map[string]string{}))
}
