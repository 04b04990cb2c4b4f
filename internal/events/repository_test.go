package events

import (
	"errors"
	"testing"

	"github.com/akvora/backend/internal/models"
)

func TestNormalizeStatusChange(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		reason  string
		want    string
		wantErr error
	}{
		{name: "approve drops reason", status: models.StatusApproved, reason: "stale", want: ""},
		{name: "pending drops reason", status: models.StatusPending, reason: "stale", want: ""},
		{name: "reject keeps reason", status: models.StatusRejected, reason: "payment not found", want: "payment not found"},
		{name: "reject trims reason", status: models.StatusRejected, reason: "  late submission \n", want: "late submission"},
		{name: "reject empty reason", status: models.StatusRejected, reason: "", wantErr: ErrReasonRequired},
		{name: "reject blank reason", status: models.StatusRejected, reason: "   \t", wantErr: ErrReasonRequired},
		{name: "unknown status", status: "archived", reason: "", wantErr: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeStatusChange(tt.status, tt.reason)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}
