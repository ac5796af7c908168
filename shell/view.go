package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/hazyhaar/contacts/navigation"
)

// ErrCreateInFlight is returned by OnNewContact while the New button is
// disabled.
var ErrCreateInFlight = errors.New("shell: contact creation already in flight")

// View is the client-side shell component. It keeps the latest loader Data,
// follows the runtime's navigation state and re-syncs the search input to q
// whenever a navigation completes.
type View struct {
	rt       navigation.Runtime
	onChange func(Page)

	mu    sync.Mutex
	data  Data
	state navigation.State
	input string // search input contents

	unsubscribe func()
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithOnChange calls fn with the new Page after every state or data change.
// fn runs synchronously and must not trigger navigations.
func WithOnChange(fn func(Page)) ViewOption { return func(v *View) { v.onChange = fn } }

// NewView mounts a view showing initial and subscribes it to rt.
func NewView(rt navigation.Runtime, initial Data, opts ...ViewOption) *View {
	v := &View{rt: rt}
	for _, o := range opts {
		o(v)
	}
	v.setData(initial)
	v.state = rt.State()
	v.unsubscribe = rt.Subscribe(func(st navigation.State) {
		v.mu.Lock()
		v.state = st
		v.mu.Unlock()
		v.changed()
	})
	return v
}

// Close detaches the view from the runtime.
func (v *View) Close() { v.unsubscribe() }

// Data returns the current loader data.
func (v *View) Data() Data {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data
}

// Page builds the current render model.
func (v *View) Page() Page {
	v.mu.Lock()
	data, st, input := v.data, v.state, v.input
	v.mu.Unlock()

	p := Build(data, st, v.rt.Location())
	p.SearchValue = input
	return p
}

// SearchValue is what the search input currently shows.
func (v *View) SearchValue() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Render writes the chrome with an empty outlet.
func (v *View) Render(w io.Writer) error {
	return renderChrome(w, v.Page())
}

// OnSearchInput handles a change of the search field: the search form is
// submitted with the new value, pushing history for the first search and
// replacing it afterwards. A search overtaken by a newer navigation returns
// nil; the newer one updates the view.
func (v *View) OnSearchInput(ctx context.Context, value string) error {
	v.mu.Lock()
	v.input = value
	opts := SearchOptions(v.data.Q)
	v.mu.Unlock()
	v.changed()

	form := navigation.Form{
		Method: "GET",
		Action: v.rt.Location().Path,
		Data:   url.Values{"q": {value}},
	}
	return v.apply(v.rt.Submit(ctx, form, opts))
}

// OnNewContact submits the New form and returns the location the server
// redirected to, the new contact's edit page.
func (v *View) OnNewContact(ctx context.Context) (*url.URL, error) {
	if IsSubmittingNew(v.rt.State()) {
		return nil, ErrCreateInFlight
	}
	form := navigation.Form{
		Method: "POST",
		Action: "/",
		Data:   url.Values{"_action": {NewContactAction}},
	}
	res, err := v.rt.Submit(ctx, form, navigation.SubmitOptions{})
	if err := v.apply(res, err); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, navigation.ErrSuperseded
	}
	return res.Location, nil
}

// Navigated installs the loader data of a navigation performed outside the
// view (a link click handled by the caller).
func (v *View) Navigated(res *navigation.Result) error {
	return v.apply(res, nil)
}

func (v *View) apply(res *navigation.Result, err error) error {
	if errors.Is(err, navigation.ErrSuperseded) {
		return nil
	}
	if err != nil {
		return err
	}
	var d Data
	if err := json.Unmarshal(res.Data, &d); err != nil {
		return fmt.Errorf("shell: decode loader data: %w", err)
	}
	v.setData(d)
	v.changed()
	return nil
}

func (v *View) setData(d Data) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = d
	v.input = ""
	if d.Q != nil {
		v.input = *d.Q
	}
}

func (v *View) changed() {
	if v.onChange != nil {
		v.onChange(v.Page())
	}
}
