package capsule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openon-app/capsule-api/internal/model"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt64(v int64) *int64        { return &v }

func TestComputeStatus(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		capsule model.Capsule
		now     time.Time
		want    model.CapsuleStatus
	}{
		{
			name:    "sealed before unlock",
			capsule: model.Capsule{UnlocksAt: base},
			now:     base.Add(-time.Hour),
			want:    model.CapsuleStatusSealed,
		},
		{
			name:    "ready exactly at unlock",
			capsule: model.Capsule{UnlocksAt: base},
			now:     base,
			want:    model.CapsuleStatusReady,
		},
		{
			name:    "ready after unlock",
			capsule: model.Capsule{UnlocksAt: base},
			now:     base.Add(time.Hour),
			want:    model.CapsuleStatusReady,
		},
		{
			name: "opened wins over ready",
			capsule: model.Capsule{
				UnlocksAt: base,
				OpenedAt:  ptrTime(base.Add(time.Minute)),
			},
			now:  base.Add(time.Hour),
			want: model.CapsuleStatusOpened,
		},
		{
			name: "expired when never opened past expiry",
			capsule: model.Capsule{
				UnlocksAt: base,
				ExpiresAt: ptrTime(base.Add(24 * time.Hour)),
			},
			now:  base.Add(25 * time.Hour),
			want: model.CapsuleStatusExpired,
		},
		{
			name: "opened before expiry stays opened after it",
			capsule: model.Capsule{
				UnlocksAt: base,
				ExpiresAt: ptrTime(base.Add(24 * time.Hour)),
				OpenedAt:  ptrTime(base.Add(time.Hour)),
			},
			now:  base.Add(48 * time.Hour),
			want: model.CapsuleStatusOpened,
		},
		{
			name: "soft deleted wins over everything",
			capsule: model.Capsule{
				UnlocksAt: base,
				OpenedAt:  ptrTime(base.Add(time.Minute)),
				DeletedAt: ptrTime(base.Add(2 * time.Minute)),
			},
			now:  base.Add(time.Hour),
			want: model.CapsuleStatusExpired,
		},
		{
			name: "disappearing still opened before derived deadline",
			capsule: model.Capsule{
				UnlocksAt:                base,
				OpenedAt:                 ptrTime(base),
				IsDisappearing:           true,
				DisappearingAfterSeconds: ptrInt64(60),
			},
			now:  base.Add(30 * time.Second),
			want: model.CapsuleStatusOpened,
		},
		{
			name: "disappearing expired at derived deadline",
			capsule: model.Capsule{
				UnlocksAt:                base,
				OpenedAt:                 ptrTime(base),
				IsDisappearing:           true,
				DisappearingAfterSeconds: ptrInt64(60),
			},
			now:  base.Add(60 * time.Second),
			want: model.CapsuleStatusExpired,
		},
		{
			name: "disappearing unopened never derives a deadline",
			capsule: model.Capsule{
				UnlocksAt:                base,
				IsDisappearing:           true,
				DisappearingAfterSeconds: ptrInt64(60),
			},
			now:  base.Add(time.Hour),
			want: model.CapsuleStatusReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(&tt.capsule, tt.now))
		})
	}
}

func TestComputeStatusIsPure(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	c := model.Capsule{
		UnlocksAt: base,
		ExpiresAt: ptrTime(base.Add(time.Hour)),
	}
	before := c

	for i := 0; i < 3; i++ {
		ComputeStatus(&c, base.Add(2*time.Hour))
	}
	assert.Equal(t, before, c, "ComputeStatus must not mutate the capsule")
}

func TestEffectiveDeleteAtRoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	c := model.Capsule{
		UnlocksAt:                base.Add(-time.Hour),
		OpenedAt:                 ptrTime(base),
		IsDisappearing:           true,
		DisappearingAfterSeconds: ptrInt64(90),
	}

	derived := c.EffectiveDeleteAt()
	assert.NotNil(t, derived)
	assert.Equal(t, base.Add(90*time.Second), *derived)

	// Once the sweep persists the marker, the persisted value wins and
	// must equal the previously derived deadline.
	c.DeletedAt = derived
	assert.Equal(t, *derived, *c.EffectiveDeleteAt())
}
