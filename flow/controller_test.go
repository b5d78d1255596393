package flow

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HealthBot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireField(field, msg string) Schema {
	return SchemaFunc(func(d model.Draft) model.FieldErrors {
		bd := d.(*model.BasicDraft)
		var v string
		switch field {
		case model.FieldCity:
			v = bd.City
		case model.FieldSex:
			v = bd.Sex
		case model.FieldMaritalStatus:
			v = bd.MaritalStatus
		}
		if v == "" {
			return model.FieldErrors{field: msg}
		}
		return nil
	})
}

func testSteps() []Step {
	return []Step{
		{Name: "city", Schema: requireField(model.FieldCity, "Please select your city or town")},
		{Name: "basic_info", Schema: requireField(model.FieldSex, "Please select one")},
		{Name: "family", Schema: requireField(model.FieldMaritalStatus, "Please select your status")},
	}
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []model.Draft
	results []Result
}

func (g *fakeGateway) Submit(_ context.Context, d model.Draft) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, d)
	if len(g.results) == 0 {
		return Result{Success: true}
	}
	r := g.results[0]
	g.results = g.results[1:]
	return r
}

func newController(t *testing.T, gw Gateway, opts ...Option) *Controller {
	t.Helper()
	c, err := New(testSteps(), &model.BasicDraft{}, gw, opts...)
	require.NoError(t, err)
	return c
}

func TestNewFailsFast(t *testing.T) {
	gw := &fakeGateway{}

	_, err := New(nil, &model.BasicDraft{}, gw)
	assert.ErrorIs(t, err, ErrNoSteps)

	_, err = New([]Step{{Name: "x"}}, &model.BasicDraft{}, gw)
	assert.ErrorIs(t, err, ErrNilSchema)

	_, err = New(testSteps(), &model.BasicDraft{}, nil)
	assert.ErrorIs(t, err, ErrNilGateway)

	_, err = New(testSteps(), nil, gw)
	assert.ErrorIs(t, err, ErrNilDraft)
}

func TestCursorStaysInRange(t *testing.T) {
	c := newController(t, &fakeGateway{})
	c.UpdateField(model.FieldCity, "Gulu")
	c.UpdateField(model.FieldSex, "male")
	c.UpdateField(model.FieldMaritalStatus, "single")

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		if r.Intn(2) == 0 {
			c.Advance()
		} else {
			c.Retreat()
		}
		cur := c.CurrentStep()
		require.GreaterOrEqual(t, cur, 0)
		require.Less(t, cur, c.TotalSteps())
	}
}

func TestAdvanceAtLastStepIsNoop(t *testing.T) {
	c := newController(t, &fakeGateway{}, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "single")

	assert.False(t, c.Advance())
	assert.Equal(t, 2, c.CurrentStep())
	assert.Empty(t, c.View().FieldErrors)
}

func TestWithCursorIsClamped(t *testing.T) {
	assert.Equal(t, 2, newController(t, &fakeGateway{}, WithCursor(9)).CurrentStep())
	assert.Equal(t, 0, newController(t, &fakeGateway{}, WithCursor(-1)).CurrentStep())
}

func TestAdvanceReplacesErrors(t *testing.T) {
	c := newController(t, &fakeGateway{})

	assert.False(t, c.Advance())
	assert.Equal(t, model.FieldErrors{"city": "Please select your city or town"}, c.View().FieldErrors)
	assert.Equal(t, 0, c.CurrentStep())

	c.UpdateField(model.FieldCity, "Lira")
	assert.Equal(t, model.FieldErrors{"city": "Please select your city or town"}, c.View().FieldErrors,
		"editing a field does not validate")

	assert.True(t, c.Advance())
	assert.Empty(t, c.View().FieldErrors)

	assert.False(t, c.Advance())
	assert.Equal(t, model.FieldErrors{"sex": "Please select one"}, c.View().FieldErrors,
		"errors of the previous step are not kept")
}

func TestRetreatKeepsDraftAndClearsErrors(t *testing.T) {
	c := newController(t, &fakeGateway{})
	c.UpdateField(model.FieldCity, "Arua")
	require.True(t, c.Advance())
	c.UpdateField(model.FieldSex, "female")
	require.True(t, c.Advance())
	require.False(t, c.Advance())
	require.NotEmpty(t, c.View().FieldErrors)

	c.Retreat()
	assert.Empty(t, c.View().FieldErrors)
	c.Retreat()
	c.Retreat()
	assert.Equal(t, 0, c.CurrentStep())

	require.True(t, c.Advance())
	require.True(t, c.Advance())
	d := c.View().Draft.(*model.BasicDraft)
	assert.Equal(t, "Arua", d.City)
	assert.Equal(t, "female", d.Sex)
}

func TestFinishBeforeLastStepIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw)
	c.UpdateField(model.FieldCity, "Gulu")

	assert.False(t, c.Finish(context.Background()))
	assert.Empty(t, gw.calls)
	assert.Equal(t, 0, c.CurrentStep())
	assert.False(t, c.View().IsSubmitted)
}

func TestFinishRevalidatesLastStep(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, WithCursor(2))

	assert.False(t, c.Finish(context.Background()))
	assert.Empty(t, gw.calls)
	assert.Equal(t, "Please select your status", c.View().FieldErrors["marital_status"])
}

func TestFinishFailureKeepsStateForRetry(t *testing.T) {
	gw := &fakeGateway{results: []Result{{Error: "Something went wrong. Let's try that again."}, {Success: true}}}
	c := newController(t, gw, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "widowed")

	assert.False(t, c.Finish(context.Background()))
	v := c.View()
	assert.Equal(t, "Something went wrong. Let's try that again.", v.SubmissionError)
	assert.Empty(t, v.FieldErrors)
	assert.Equal(t, 2, v.CurrentStepIndex)
	assert.False(t, v.IsSubmitting)
	assert.Equal(t, "widowed", v.Draft.(*model.BasicDraft).MaritalStatus)

	assert.True(t, c.Finish(context.Background()))
	assert.Len(t, gw.calls, 2)
	v = c.View()
	assert.True(t, v.IsSubmitted)
	assert.Empty(t, v.SubmissionError)
}

func TestFinishFailureWithoutMessage(t *testing.T) {
	gw := &fakeGateway{results: []Result{{}}}
	c := newController(t, gw, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "other")

	assert.False(t, c.Finish(context.Background()))
	assert.Equal(t, DefaultSubmissionError, c.View().SubmissionError)
}

func TestSubmittedIsTerminal(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "single")
	require.True(t, c.Finish(context.Background()))

	c.Retreat()
	c.UpdateField(model.FieldMaritalStatus, "married")
	assert.False(t, c.Advance())
	assert.False(t, c.Finish(context.Background()))

	v := c.View()
	assert.Equal(t, 2, v.CurrentStepIndex)
	assert.Equal(t, "single", v.Draft.(*model.BasicDraft).MaritalStatus)
	assert.Len(t, gw.calls, 1)
}

func TestFinishIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	gw := GatewayFunc(func(ctx context.Context, d model.Draft) Result {
		calls.Add(1)
		close(entered)
		<-release
		return Result{Error: "Something went wrong. Let's try that again."}
	})
	c := newController(t, gw, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "single")

	done := make(chan bool)
	go func() { done <- c.Finish(context.Background()) }()
	<-entered

	assert.True(t, c.View().IsSubmitting)
	assert.False(t, c.Finish(context.Background()), "second finish while outstanding")

	// edits are still accepted while the request is in flight
	c.UpdateField(model.FieldCity, "Hoima")

	close(release)
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("finish did not return")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, c.View().IsSubmitting)
}

func TestGatewayGetsACopy(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, WithCursor(2))
	c.UpdateField(model.FieldMaritalStatus, "single")
	require.True(t, c.Finish(context.Background()))

	sent := gw.calls[0].(*model.BasicDraft)
	sent.MaritalStatus = "changed"
	assert.Equal(t, "single", c.View().Draft.(*model.BasicDraft).MaritalStatus)
}

func TestToggleConditionIgnoredWithoutConditionSet(t *testing.T) {
	c := newController(t, &fakeGateway{})
	var notified int
	c.Subscribe(func(View) { notified++ })

	c.ToggleCondition("Asthma")
	assert.Zero(t, notified)
}

func TestSubscribeAndCancel(t *testing.T) {
	c := newController(t, &fakeGateway{})

	var views []View
	cancel := c.Subscribe(func(v View) { views = append(views, v) })

	c.UpdateField(model.FieldCity, "Masaka")
	c.Advance()
	require.Len(t, views, 2)
	assert.Equal(t, "Masaka", views[0].Draft.(*model.BasicDraft).City)
	assert.Equal(t, 1, views[1].CurrentStepIndex)

	cancel()
	c.Retreat()
	assert.Len(t, views, 2)
}

func TestViewIsASnapshot(t *testing.T) {
	c := newController(t, &fakeGateway{})
	c.Advance()

	v := c.View()
	v.FieldErrors["city"] = "mutated"
	v.Draft.SetField(model.FieldCity, "mutated")

	again := c.View()
	assert.Equal(t, "Please select your city or town", again.FieldErrors["city"])
	assert.Empty(t, again.Draft.(*model.BasicDraft).City)
}

func TestProgress(t *testing.T) {
	c := newController(t, &fakeGateway{}, WithCursor(1))
	p := c.View().Progress()
	assert.Equal(t, Progress{Now: 2, Max: 3, Label: "Step 2 of 3"}, p)
}

type recordingHooks struct {
	advanced, retreated []string
	failed              []string
	submitted           []bool
}

func (h *recordingHooks) Advanced(s string)  { h.advanced = append(h.advanced, s) }
func (h *recordingHooks) Retreated(s string) { h.retreated = append(h.retreated, s) }
func (h *recordingHooks) ValidationFailed(s string, _ model.FieldErrors) {
	h.failed = append(h.failed, s)
}
func (h *recordingHooks) Submitted(ok bool, _ time.Duration) { h.submitted = append(h.submitted, ok) }

func TestHooks(t *testing.T) {
	h := &recordingHooks{}
	c := newController(t, &fakeGateway{}, WithHooks(h))

	c.Advance()
	c.UpdateField(model.FieldCity, "Gulu")
	c.Advance()
	c.Retreat()
	c.Retreat()

	assert.Equal(t, []string{"city"}, h.failed)
	assert.Equal(t, []string{"city"}, h.advanced)
	assert.Equal(t, []string{"basic_info"}, h.retreated, "retreat at step 0 is not reported")
}
