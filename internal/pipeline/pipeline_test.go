package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/command"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/link"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingSender struct {
	sent []command.Code
}

func (s *recordingSender) Send(code command.Code) (link.Outcome, error) {
	s.sent = append(s.sent, code)
	return link.OutcomeSent, nil
}

type bufferPort struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *bufferPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *bufferPort) Close() error { return nil }

func (p *bufferPort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

// sliceSource replays observations, then reports ErrSourceClosed.
type sliceSource struct {
	frames []*hand.Landmarks
	errs   map[int]error
	index  int
	onNext func(i int)
}

func (s *sliceSource) Next(ctx context.Context) (*hand.Landmarks, error) {
	if s.index >= len(s.frames) {
		return nil, ErrSourceClosed
	}
	i := s.index
	s.index++
	if s.onNext != nil {
		s.onNext(i)
	}
	if err, ok := s.errs[i]; ok {
		return nil, err
	}
	return s.frames[i], nil
}

func pose(lm hand.Landmarks) *hand.Landmarks {
	return &lm
}

func newDriver(sender Sender, start time.Time) (*Driver, *command.Debouncer) {
	deb := command.NewDebouncer(2*time.Second, start)
	d := New(Config{
		Classifier: gesture.NewRuleClassifier(),
		Debouncer:  deb,
		Sender:     sender,
		Logger:     quietLogger(),
	})
	return d, deb
}

func TestDriver_Step_CooldownSequence(t *testing.T) {
	sender := &recordingSender{}
	d, _ := newDriver(sender, at(-10))

	frames := []struct {
		pose hand.Landmarks
		t    float64
	}{
		{hand.OpenHandLandmarks(), 0},
		{hand.OpenHandLandmarks(), 1},
		{hand.FistLandmarks(), 1.5},
		{hand.OpenHandLandmarks(), 2.5},
	}

	for _, f := range frames {
		d.Step(pose(f.pose), at(f.t))
	}

	if len(sender.sent) != 1 || sender.sent[0] != command.G1 {
		t.Errorf("sent = %v, want [G1]", sender.sent)
	}
}

func TestDriver_Step_Result(t *testing.T) {
	sender := &recordingSender{}
	d, _ := newDriver(sender, at(-10))

	res := d.Step(pose(hand.PeaceSignLandmarks()), at(0))
	if res.Gesture != gesture.PeaceSign {
		t.Errorf("Gesture = %q, want %q", res.Gesture, gesture.PeaceSign)
	}
	if !res.HasCommand || res.Candidate != command.G3 {
		t.Errorf("Candidate = %s, %v", res.Candidate, res.HasCommand)
	}
	if res.Dispatched == nil || res.Dispatched.Code != command.G3 || res.Dispatched.Outcome != link.OutcomeSent {
		t.Errorf("Dispatched = %+v", res.Dispatched)
	}
	if d.LastGesture() != gesture.PeaceSign {
		t.Errorf("LastGesture() = %q", d.LastGesture())
	}

	res = d.Step(pose(hand.FistLandmarks()), at(1))
	if res.Candidate != command.G2 || res.Dispatched != nil {
		t.Errorf("suppressed frame result = %+v", res)
	}
}

func TestDriver_Step_AbsentFrames(t *testing.T) {
	sender := &recordingSender{}
	d, deb := newDriver(sender, at(-10))

	d.Step(pose(hand.ThumbsUpLandmarks()), at(0))
	before := deb.State()

	for i := 1; i <= 25; i++ {
		res := d.Step(nil, at(float64(i)))
		if res.Gesture != gesture.NoGesture || res.HasCommand || res.Dispatched != nil {
			t.Fatalf("frame %d: unexpected result %+v", i, res)
		}
	}

	if len(sender.sent) != 1 {
		t.Errorf("expected only the initial dispatch, got %v", sender.sent)
	}
	if after := deb.State(); after != before {
		t.Errorf("debounce state changed: %+v -> %+v", before, after)
	}
	if d.Frames() != 26 {
		t.Errorf("Frames() = %d, want 26", d.Frames())
	}
}

func TestDriver_Step_InvalidObservation(t *testing.T) {
	sender := &recordingSender{}
	d, _ := newDriver(sender, at(-10))

	short := hand.OpenHandLandmarks()
	short.Points = short.Points[:20]

	res := d.Step(&short, at(0))
	if res.Gesture != gesture.NoGesture || res.Dispatched != nil {
		t.Errorf("malformed observation produced %+v", res)
	}

	// The pipeline keeps going with the next valid frame.
	res = d.Step(pose(hand.OpenHandLandmarks()), at(0.1))
	if res.Dispatched == nil {
		t.Error("valid frame after malformed one was not dispatched")
	}
}

func TestDriver_DegradedLinkMatchesConnected(t *testing.T) {
	sequence := []struct {
		pose *hand.Landmarks
		t    float64
	}{
		{pose(hand.FistLandmarks()), 0},
		{nil, 0.5},
		{pose(hand.HipHopLandmarks()), 1},
		{pose(hand.HipHopLandmarks()), 2.5},
		{pose(hand.OneFingerLandmarks()), 3},
		{pose(hand.OneFingerLandmarks()), 5},
	}

	port := &bufferPort{}
	connected, _ := newDriver(link.New("/dev/fake", port, time.Second, quietLogger()), at(-10))
	degraded, _ := newDriver(link.Unavailable("/dev/missing", quietLogger()), at(-10))

	for i, f := range sequence {
		rc := connected.Step(f.pose, at(f.t))
		rd := degraded.Step(f.pose, at(f.t))

		if rc.Gesture != rd.Gesture || rc.Candidate != rd.Candidate {
			t.Errorf("frame %d: classification differs: %+v vs %+v", i, rc, rd)
		}
		if (rc.Dispatched == nil) != (rd.Dispatched == nil) {
			t.Fatalf("frame %d: dispatch decision differs", i)
		}
		if rd.Dispatched != nil {
			if rd.Dispatched.Outcome != link.OutcomeUnavailable || rd.Dispatched.Err != nil {
				t.Errorf("frame %d: degraded dispatch = %+v", i, rd.Dispatched)
			}
			if rc.Dispatched.Outcome != link.OutcomeSent {
				t.Errorf("frame %d: connected dispatch = %+v", i, rc.Dispatched)
			}
		}
	}

	if got := port.String(); got != "G2\nG7\nG4\n" {
		t.Errorf("connected wire bytes = %q", got)
	}
}

func TestDriver_Disabled(t *testing.T) {
	sender := &recordingSender{}
	d, _ := newDriver(sender, at(-10))

	d.SetEnabled(false)
	if d.IsEnabled() {
		t.Fatal("driver still enabled")
	}
	if res := d.Step(pose(hand.FistLandmarks()), at(0)); res.Gesture != gesture.NoGesture {
		t.Errorf("disabled driver classified %q", res.Gesture)
	}

	d.SetEnabled(true)
	if res := d.Step(pose(hand.FistLandmarks()), at(0.5)); res.Dispatched == nil {
		t.Error("re-enabled driver did not dispatch")
	}
}

func TestDriver_OnDispatch(t *testing.T) {
	d, _ := newDriver(&recordingSender{}, at(-10))

	var order []string
	var got []Dispatch
	d.OnDispatch(func(ev Dispatch) {
		order = append(order, "first")
		got = append(got, ev)
	})
	d.OnDispatch(func(ev Dispatch) { order = append(order, "second") })

	d.Step(pose(hand.ThreeFingersLandmarks()), at(0))
	d.Step(pose(hand.ThreeFingersLandmarks()), at(5)) // same code, suppressed

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ev := got[0]
	if ev.Code != command.G6 || ev.Gesture != gesture.ThreeFingers || ev.Status != "sent" || !ev.At.Equal(at(0)) {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("observer order = %v", order)
	}
}

func TestDriver_Run(t *testing.T) {
	t.Run("source closed ends run", func(t *testing.T) {
		sender := &recordingSender{}
		d, _ := newDriver(sender, at(-10))

		src := &sliceSource{frames: []*hand.Landmarks{pose(hand.FistLandmarks()), nil, nil}}
		err := d.Run(context.Background(), src)
		if !errors.Is(err, ErrSourceClosed) {
			t.Errorf("Run() = %v, want ErrSourceClosed", err)
		}
		if d.Frames() != 3 {
			t.Errorf("Frames() = %d, want 3", d.Frames())
		}
		if len(sender.sent) != 1 {
			t.Errorf("sent = %v", sender.sent)
		}
	})

	t.Run("source errors skip the frame", func(t *testing.T) {
		sender := &recordingSender{}
		d, _ := newDriver(sender, at(-10))

		src := &sliceSource{
			frames: []*hand.Landmarks{pose(hand.FistLandmarks()), pose(hand.FistLandmarks())},
			errs:   map[int]error{0: errors.New("camera hiccup")},
		}
		d.Run(context.Background(), src)

		if d.Frames() != 2 {
			t.Errorf("Frames() = %d, want 2", d.Frames())
		}
		if len(sender.sent) != 1 {
			t.Errorf("sent = %v, want one dispatch from the second frame", sender.sent)
		}
	})

	t.Run("cancellation completes the current frame", func(t *testing.T) {
		sender := &recordingSender{}
		d, _ := newDriver(sender, at(-10))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		frames := make([]*hand.Landmarks, 10)
		frames[2] = pose(hand.HipHopLandmarks())
		src := &sliceSource{
			frames: frames,
			onNext: func(i int) {
				if i == 2 {
					cancel()
				}
			},
		}

		if err := d.Run(ctx, src); err != nil {
			t.Errorf("Run() = %v, want nil on cancellation", err)
		}
		if d.Frames() != 3 {
			t.Errorf("Frames() = %d, want 3", d.Frames())
		}
		if len(sender.sent) != 1 || sender.sent[0] != command.G7 {
			t.Errorf("in-flight frame was not dispatched: %v", sender.sent)
		}
	})

	t.Run("uses clock for timestamps", func(t *testing.T) {
		sender := &recordingSender{}
		tick := 0.0
		d := New(Config{
			Classifier: gesture.NewRuleClassifier(),
			Debouncer:  command.NewDebouncer(2*time.Second, at(-10)),
			Sender:     sender,
			Logger:     quietLogger(),
			Clock: func() time.Time {
				tick += 1
				return at(tick)
			},
		})

		// Alternating codes one second apart: a new code goes out once the
		// two-second window has passed.
		var frames []*hand.Landmarks
		for i := 0; i < 6; i++ {
			if i%2 == 0 {
				frames = append(frames, pose(hand.FistLandmarks()))
			} else {
				frames = append(frames, pose(hand.OpenHandLandmarks()))
			}
		}
		d.Run(context.Background(), &sliceSource{frames: frames})

		want := []command.Code{command.G2, command.G1}
		if len(sender.sent) != len(want) {
			t.Fatalf("sent = %v, want %v", sender.sent, want)
		}
		for i := range want {
			if sender.sent[i] != want[i] {
				t.Errorf("sent[%d] = %s, want %s", i, sender.sent[i], want[i])
			}
		}
	})
}
