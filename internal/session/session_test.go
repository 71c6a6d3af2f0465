package session

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
	"github.com/couchcryptid/sounding-edit-service/internal/thermo"
)

// 650 px over 65 °C: ten pixels per degree on the linear scale.
const pxPerDegree = 10

func testProfile() domain.Profile {
	return domain.Profile{
		Pressure:    []float64{1000, 850, 700},
		Temperature: []float64{10, 12, 14},
		Dewpoint:    []float64{4, 6, 8},
		UWind:       []float64{2, 4, 6},
		VWind:       []float64{1, 1, 1},
	}
}

func newTestSession(t *testing.T) (*Session, *clockwork.FakeClock) {
	t.Helper()
	tr, err := skewt.NewTransform(skewt.DefaultConfig(650, 500))
	require.NoError(t, err)
	clk := clockwork.NewFakeClockAt(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
	return New("sess-test", tr, perturb.Default(), clk), clk
}

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s, _ := newTestSession(t)
	_, err := s.Load(testProfile(), nil, nil)
	require.NoError(t, err)
	return s
}

// drag performs a full start/move/end cycle moving the handle by dx pixels.
func drag(t *testing.T, s *Session, v domain.Variable, index int, dx float64) (Changes, error) {
	t.Helper()
	h, err := s.DragStart(v, index)
	require.NoError(t, err)
	_, err = s.DragMove(skewt.Point{X: h.X + dx/2, Y: h.Y})
	require.NoError(t, err)
	return s.DragEnd(skewt.Point{X: h.X + dx, Y: h.Y + 7})
}

func TestLoad_InitialState(t *testing.T) {
	s, clk := newTestSession(t)
	assert.Equal(t, Idle, s.State())

	sel := &domain.Selection{Lat: 43.5, Lon: -96, Date: "2024-01-10", Initialization: "12Z", ForecastHour: 3}
	pred := &domain.Prediction{Rain: 0.1, Snow: 0.7, IceP: 0.1, FrzR: 0.1}
	ch, err := s.Load(testProfile(), sel, pred)
	require.NoError(t, err)

	assert.Equal(t, domain.Unmodified, ch.Modified)
	assert.Equal(t, []float64{10, 12, 14}, ch.Temperature)
	require.Len(t, ch.TemperatureHandles, 3)
	require.Len(t, ch.DewpointHandles, 3)
	assert.Less(t, ch.DewpointHandles[1].X, ch.TemperatureHandles[1].X)

	snap := s.Snapshot()
	assert.Equal(t, "sess-test", snap.ID)
	assert.Equal(t, clk.Now(), snap.LoadedAt)
	require.NotNil(t, snap.Selection)
	assert.Equal(t, "12Z", snap.Selection.Initialization)
	require.NotNil(t, snap.ValidTime)
	assert.True(t, snap.ValidTime.Equal(time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)), "run date + 12Z + 3 h")
	require.NotNil(t, snap.Prediction)
	assert.InDelta(t, 0.7, snap.Prediction.Snow, 0)
	assert.False(t, snap.Pending)

	// All levels above freezing: only positive buoyancy.
	assert.Greater(t, ch.PositiveArea, 0.0)
	assert.Zero(t, ch.NegativeArea)
}

func TestLoad_RejectsMalformedProfile(t *testing.T) {
	s := loadedSession(t)

	bad := testProfile()
	bad.Dewpoint = bad.Dewpoint[:2]
	_, err := s.Load(bad, nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidProfile)

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p, "previous profile is kept")
	assert.Equal(t, Idle, s.State())
}

func TestLoad_NoProfileYet(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.DragStart(domain.Temperature, 0)
	require.ErrorIs(t, err, ErrNoProfile)
	_, err = s.Reset()
	require.ErrorIs(t, err, ErrNoProfile)
	_, err = s.Profile()
	require.ErrorIs(t, err, ErrNoProfile)
}

func TestDragEnd_TemperatureScenario(t *testing.T) {
	s := loadedSession(t)

	ch, err := drag(t, s, domain.Temperature, 1, 5*pxPerDegree)
	require.NoError(t, err)

	side := 5 * math.Exp(-0.125)
	want := []float64{10 + side, 17, 14 + side}
	if diff := cmp.Diff(want, ch.Temperature, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("temperature mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{4, 6, 8}, ch.Dewpoint, "dewpoint untouched without RH lock")
	assert.Equal(t, domain.Edited, ch.Modified)
	assert.Equal(t, domain.Edited, s.Modified())
	assert.Equal(t, Idle, s.State())

	require.NotNil(t, ch.Record)
	assert.Equal(t, domain.Temperature, ch.Record.Variable)
	assert.Equal(t, 1, ch.Record.Index)
	assert.InDelta(t, 5.0, ch.Record.Delta, 1e-9)
	assert.Equal(t, []float64{2, 4, 6}, ch.Record.UWind)
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), ch.Record.CommittedAt, "stamped from the session clock")

	// Handle at the dragged level lands at the released x.
	h0 := s.Transform().ToDiagram(12, 850)
	assert.InDelta(t, h0.X+50, ch.TemperatureHandles[1].X, 1e-9)
	assert.True(t, s.Snapshot().Pending)
}

func TestDragEnd_RHLockTemperature(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.SetRHLock(true))

	ch, err := drag(t, s, domain.Temperature, 1, 5*pxPerDegree)
	require.NoError(t, err)

	for i, p := range testProfile().Temperature {
		before, err := thermo.RelativeHumidity(p, testProfile().Dewpoint[i])
		require.NoError(t, err)
		after, err := thermo.RelativeHumidity(ch.Temperature[i], ch.Dewpoint[i])
		require.NoError(t, err)
		assert.InDelta(t, before, after, 1e-6, "level %d", i)
	}
	assert.Greater(t, ch.Dewpoint[1], 6.0)
	assert.True(t, ch.Record.RHLock)
}

func TestDragEnd_RHLockDewpoint(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.SetRHLock(true))

	ch, err := drag(t, s, domain.Dewpoint, 0, -3*pxPerDegree)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, ch.Dewpoint[0], 1e-9)
	for i := range ch.Temperature {
		before, err := thermo.RelativeHumidity(testProfile().Temperature[i], testProfile().Dewpoint[i])
		require.NoError(t, err)
		after, err := thermo.RelativeHumidity(ch.Temperature[i], ch.Dewpoint[i])
		require.NoError(t, err)
		assert.InDelta(t, before, after, 1e-6, "level %d", i)
	}
	assert.Less(t, ch.Temperature[0], 10.0)
}

func TestDragEnd_UsesDragStartBaseline(t *testing.T) {
	s := loadedSession(t)
	h, err := s.DragStart(domain.Temperature, 2)
	require.NoError(t, err)

	// Many intermediate moves do not accumulate.
	for i := 0; i < 25; i++ {
		_, err := s.DragMove(skewt.Point{X: h.X + float64(i)*3, Y: h.Y})
		require.NoError(t, err)
		p, err := s.Profile()
		require.NoError(t, err)
		assert.Equal(t, testProfile().Temperature, p.Temperature, "arrays do not change mid-drag")
	}

	ch, err := s.DragEnd(skewt.Point{X: h.X + 20, Y: h.Y})
	require.NoError(t, err)
	assert.InDelta(t, 16.0, ch.Temperature[2], 1e-9)
}

func TestDragEnd_RejectsSupersaturation(t *testing.T) {
	s := loadedSession(t)

	_, err := drag(t, s, domain.Dewpoint, 1, 10*pxPerDegree)
	require.ErrorIs(t, err, ErrEditRejected)
	require.ErrorIs(t, err, domain.ErrInvalidProfile)

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)
	assert.Equal(t, domain.Unmodified, s.Modified())
	assert.Equal(t, Idle, s.State())
}

func TestDragEnd_RHLockSaturatedLevels(t *testing.T) {
	for _, v := range []domain.Variable{domain.Temperature, domain.Dewpoint} {
		for _, base := range []float64{-25.7, -10, 0, 3.3, 15.2} {
			for _, dx := range []float64{-37, -8, 3, 12, 44} {
				s, _ := newTestSession(t)
				_, err := s.Load(domain.Profile{
					Pressure:    []float64{1000, 850, 700},
					Temperature: []float64{base, base - 2, base - 4},
					Dewpoint:    []float64{base, base - 2, base - 4},
				}, nil, nil)
				require.NoError(t, err)
				require.NoError(t, s.SetRHLock(true))

				ch, err := drag(t, s, v, 1, dx)
				require.NoError(t, err, "%s base=%v dx=%v", v, base, dx)
				for i := range ch.Temperature {
					assert.LessOrEqual(t, ch.Dewpoint[i], ch.Temperature[i])
					rh, err := thermo.RelativeHumidity(ch.Temperature[i], ch.Dewpoint[i])
					require.NoError(t, err)
					assert.InDelta(t, 1.0, rh, 1e-6, "%s level %d", v, i)
				}
			}
		}
	}
}

func TestDragStart_SecondPointerDownRejected(t *testing.T) {
	s := loadedSession(t)
	_, err := s.DragStart(domain.Temperature, 0)
	require.NoError(t, err)

	_, err = s.DragStart(domain.Dewpoint, 1)
	require.ErrorIs(t, err, ErrDragInProgress)
	assert.Equal(t, Dragging, s.State())
}

func TestDragMoveAndEnd_WithoutDrag(t *testing.T) {
	s := loadedSession(t)
	_, err := s.DragMove(skewt.Point{X: 1, Y: 1})
	require.ErrorIs(t, err, ErrNotDragging)
	_, err = s.DragEnd(skewt.Point{X: 1, Y: 1})
	require.ErrorIs(t, err, ErrNotDragging)
}

func TestDragMove_KeepsLevelPressure(t *testing.T) {
	s := loadedSession(t)
	h, err := s.DragStart(domain.Temperature, 1)
	require.NoError(t, err)

	moved, err := s.DragMove(skewt.Point{X: h.X + 12, Y: h.Y - 80})
	require.NoError(t, err)
	assert.InDelta(t, h.Y, moved.Y, 0)
	assert.InDelta(t, h.X+12, moved.X, 0)
	require.NotNil(t, s.Snapshot().Drag)
}

func TestReset_RestoresLoadedProfileExactly(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.SetRHLock(true))

	for i := 0; i < 3; i++ {
		_, err := drag(t, s, domain.Temperature, i, 1.7*pxPerDegree)
		require.NoError(t, err)
	}
	_, err := drag(t, s, domain.Dewpoint, 2, -2.3*pxPerDegree)
	require.NoError(t, err)
	require.Equal(t, domain.Edited, s.Modified())

	ch, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, domain.Unmodified, ch.Modified)
	assert.Nil(t, ch.Record)

	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, testProfile(), p)
	assert.Equal(t, domain.Unmodified, s.Modified())
	assert.False(t, s.Snapshot().Pending)
}

func TestReset_CancelsDrag(t *testing.T) {
	s := loadedSession(t)
	_, err := s.DragStart(domain.Temperature, 0)
	require.NoError(t, err)
	_, err = s.Reset()
	require.NoError(t, err)
	assert.Equal(t, Idle, s.State())
}

func TestLoadingCycle(t *testing.T) {
	s := loadedSession(t)
	_, err := drag(t, s, domain.Temperature, 0, 10)
	require.NoError(t, err)

	require.NoError(t, s.BeginLoad())
	assert.Equal(t, Loading, s.State())
	_, err = s.DragStart(domain.Temperature, 0)
	require.ErrorIs(t, err, ErrLoading)

	s.FailLoad()
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, domain.Edited, s.Modified(), "failed load keeps the edited profile")

	require.NoError(t, s.BeginLoad())
	next := testProfile()
	next.Temperature = []float64{-1, -2, -3}
	next.Dewpoint = []float64{-4, -5, -6}
	ch, err := s.Load(next, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Unmodified, ch.Modified)
	assert.Equal(t, []float64{-1, -2, -3}, ch.Temperature)

	// Reset now goes back to the newly loaded profile.
	_, err = drag(t, s, domain.Temperature, 1, 10)
	require.NoError(t, err)
	_, err = s.Reset()
	require.NoError(t, err)
	p, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, next, p)
}

func TestBeginLoad_DiscardsDrag(t *testing.T) {
	s := loadedSession(t)
	_, err := s.DragStart(domain.Temperature, 0)
	require.NoError(t, err)
	require.NoError(t, s.BeginLoad())
	_, err = s.DragEnd(skewt.Point{})
	require.ErrorIs(t, err, ErrNotDragging)
}

func TestApplyPrediction_DisplayOnly(t *testing.T) {
	s, clk := newTestSession(t)
	_, err := s.Load(testProfile(), nil, nil)
	require.NoError(t, err)
	_, err = drag(t, s, domain.Temperature, 1, 20)
	require.NoError(t, err)
	before, err := s.Profile()
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	require.NoError(t, s.ApplyPrediction(domain.Prediction{Rain: 0.9, Metrics: domain.Metrics{"warm_nose_area": "N/A"}}))

	after, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap := s.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, domain.Edited, snap.Modified)
	require.NotNil(t, snap.Prediction)
	assert.InDelta(t, 0.9, snap.Prediction.Rain, 0)
	assert.Equal(t, clk.Now(), snap.PredictedAt)
}

func TestClose(t *testing.T) {
	s := loadedSession(t)
	s.Close()
	_, err := s.DragStart(domain.Temperature, 0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Reset()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.SetRHLock(true), ErrClosed)
	require.ErrorIs(t, s.ApplyPrediction(domain.Prediction{}), ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "dragging", Dragging.String())
	assert.Equal(t, "settling", Settling.String())
}

func TestReset_RestoresLoadedPrediction(t *testing.T) {
	s, _ := newTestSession(t)
	base := domain.Prediction{Rain: 0.2, Snow: 0.8}
	_, err := s.Load(testProfile(), nil, &base)
	require.NoError(t, err)

	_, err = drag(t, s, domain.Temperature, 1, 10)
	require.NoError(t, err)
	require.NoError(t, s.ApplyPrediction(domain.Prediction{Rain: 0.9, Snow: 0.1}))

	_, err = s.Reset()
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, base, *snap.Prediction)
}
