package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbooking/internal/model"
)

// 2026-03-04 is a Wednesday, 2026-03-07 a Saturday.
const (
	wednesday = "2026-03-04"
	saturday  = "2026-03-07"
)

func hours(open, close string) *model.ShopAvailability {
	return &model.ShopAvailability{ShopID: "s1", IsOpen: true, OpenTime: open, CloseTime: close}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		wantOpen   bool
		wantReason ClosedReason
		wantOpenM  int
		wantCloseM int
		overnight  bool
	}{
		{
			name:       "regular day",
			in:         Input{Date: wednesday, Weekday: hours("09:00", "18:00"), AllowWeekend: true},
			wantOpen:   true,
			wantOpenM:  540,
			wantCloseM: 1080,
		},
		{
			name:       "overnight",
			in:         Input{Date: wednesday, Weekday: hours("15:00", "01:00"), AllowWeekend: true},
			wantOpen:   true,
			wantOpenM:  900,
			wantCloseM: 1500,
			overnight:  true,
		},
		{
			name:       "close equals open is a full overnight day",
			in:         Input{Date: wednesday, Weekday: hours("08:00", "08:00"), AllowWeekend: true},
			wantOpen:   true,
			wantOpenM:  480,
			wantCloseM: 1920,
			overnight:  true,
		},
		{
			name:       "weekday closed",
			in:         Input{Date: wednesday, Weekday: &model.ShopAvailability{IsOpen: false}, AllowWeekend: true},
			wantReason: ReasonDayClosed,
		},
		{
			name:       "weekend disabled",
			in:         Input{Date: saturday, Weekday: hours("09:00", "18:00"), AllowWeekend: false},
			wantReason: ReasonWeekend,
		},
		{
			name:       "missing hours",
			in:         Input{Date: wednesday, Weekday: &model.ShopAvailability{IsOpen: true, OpenTime: "09:00"}, AllowWeekend: true},
			wantReason: ReasonMissingHours,
		},
		{
			name:       "no weekday row",
			in:         Input{Date: wednesday, AllowWeekend: true},
			wantReason: ReasonNoAvailability,
		},
		{
			name: "closed override beats open weekday",
			in: Input{
				Date:         wednesday,
				Weekday:      hours("09:00", "18:00"),
				Override:     &model.DateOverride{OverrideDate: wednesday, IsClosed: true},
				AllowWeekend: true,
			},
			wantReason: ReasonOverride,
		},
		{
			name: "custom hours override opens a closed weekday",
			in: Input{
				Date:         wednesday,
				Weekday:      &model.ShopAvailability{IsOpen: false, OpenTime: "09:00", CloseTime: "18:00"},
				Override:     &model.DateOverride{OverrideDate: wednesday, CustomOpenTime: "10:00", CustomCloseTime: "14:00"},
				AllowWeekend: true,
			},
			wantOpen:   true,
			wantOpenM:  600,
			wantCloseM: 840,
		},
		{
			name: "override without custom times keeps weekday hours",
			in: Input{
				Date:         wednesday,
				Weekday:      hours("09:00", "18:00"),
				Override:     &model.DateOverride{OverrideDate: wednesday},
				AllowWeekend: true,
			},
			wantOpen:   true,
			wantOpenM:  540,
			wantCloseM: 1080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOpen, plan.Open)
			assert.Equal(t, tt.wantReason, plan.Reason)
			if tt.wantOpen {
				assert.Equal(t, tt.wantOpenM, plan.OpenMinute)
				assert.Equal(t, tt.wantCloseM, plan.CloseMinute)
				assert.Equal(t, tt.overnight, plan.Overnight)
			}
		})
	}
}

func TestResolve_BreakKeptUnderOverride(t *testing.T) {
	weekday := hours("09:00", "18:00")
	weekday.BreakStartTime = "12:00"
	weekday.BreakEndTime = "13:00"

	plan, err := Resolve(Input{
		Date:         wednesday,
		Weekday:      weekday,
		Override:     &model.DateOverride{CustomOpenTime: "11:00", CustomCloseTime: "16:00"},
		AllowWeekend: true,
	})
	require.NoError(t, err)
	assert.True(t, plan.HasBreak)
	assert.True(t, plan.InBreak(12*60))
	assert.True(t, plan.InBreak(12*60+30))
	assert.False(t, plan.InBreak(13*60))
	assert.False(t, plan.InBreak(11*60+59))
}

func TestResolve_InvalidTime(t *testing.T) {
	_, err := Resolve(Input{Date: wednesday, Weekday: hours("9am", "18:00"), AllowWeekend: true})
	assert.Error(t, err)

	_, err = Resolve(Input{Date: "04.03.2026", Weekday: hours("09:00", "18:00")})
	assert.Error(t, err)
}

func TestDayPlan_CloseDate(t *testing.T) {
	plan, err := Resolve(Input{Date: "2026-03-31", Weekday: hours("20:00", "02:00"), AllowWeekend: true})
	require.NoError(t, err)
	closeDate, err := plan.CloseDate()
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", closeDate)
	assert.Equal(t, "02:00", plan.CloseClock())
}
