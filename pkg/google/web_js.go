//go:build js && wasm

package google

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/dmitrymomot/signin/pkg/auth"
)

// NewBrowser builds a Web adapter bound to the page's Google Identity Services.
func NewBrowser(cfg auth.Config, opts ...Option) (*Web, error) {
	return NewWeb(cfg, jsIdentity{}, jsDocument{}, opts...)
}

func accounts() js.Value {
	g := js.Global().Get("google")
	if g.IsUndefined() || g.IsNull() {
		return js.Undefined()
	}
	return g.Get("accounts")
}

// jsCall converts a JavaScript exception raised by fn into an error.
func jsCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if jerr, ok := r.(js.Error); ok {
				err = errors.New(jerr.Error())
				return
			}
			err = fmt.Errorf("javascript call panicked: %v", r)
		}
	}()
	fn()
	return nil
}

func stringField(v js.Value, name string) string {
	f := v.Get(name)
	if f.Type() != js.TypeString {
		return ""
	}
	return f.String()
}

func callBool(v js.Value, method string) bool {
	if v.Get(method).Type() != js.TypeFunction {
		return false
	}
	return v.Call(method).Truthy()
}

type jsIdentity struct{}

func (jsIdentity) Initialize(cfg IDConfiguration) error {
	wire := cfg.Wire()
	if cfg.Callback != nil {
		cb := cfg.Callback
		// released never: GSI keeps calling it for the page lifetime
		wire["callback"] = js.FuncOf(func(_ js.Value, args []js.Value) any {
			var resp CredentialResponse
			if len(args) > 0 {
				resp.Credential = stringField(args[0], "credential")
				resp.SelectBy = stringField(args[0], "select_by")
			}
			go cb(resp)
			return nil
		})
	}
	return jsCall(func() { accounts().Get("id").Call("initialize", js.ValueOf(wire)) })
}

func (jsIdentity) Prompt(listener func(PromptMoment)) error {
	var fn js.Func
	fn = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		n := args[0]
		m := PromptMoment{
			NotDisplayed: callBool(n, "isNotDisplayed"),
			Skipped:      callBool(n, "isSkippedMoment"),
			Dismissed:    callBool(n, "isDismissedMoment"),
		}
		if m.Dismissed && n.Get("getDismissedReason").Type() == js.TypeFunction {
			m.DismissedReason = n.Call("getDismissedReason").String()
		}
		listener(m)
		if m.Skipped || m.Dismissed {
			fn.Release()
		}
		return nil
	})
	return jsCall(func() { accounts().Get("id").Call("prompt", fn) })
}

func (jsIdentity) RenderButton(elementID string, cfg ButtonConfiguration) error {
	doc := js.Global().Get("document")
	el := doc.Call("getElementById", elementID)
	if el.IsNull() {
		el = doc.Call("createElement", "div")
		el.Set("id", elementID)
		el.Get("style").Set("display", "none")
		doc.Get("body").Call("appendChild", el)
	}
	return jsCall(func() { accounts().Get("id").Call("renderButton", el, js.ValueOf(cfg.Wire())) })
}

func (jsIdentity) DisableAutoSelect() {
	_ = jsCall(func() { accounts().Get("id").Call("disableAutoSelect") })
}

func (jsIdentity) InitTokenClient(cfg TokenClientConfig) (TokenClient, error) {
	wire := cfg.Wire()
	var cb js.Func
	if cfg.Callback != nil {
		handle := cfg.Callback
		cb = js.FuncOf(func(_ js.Value, args []js.Value) any {
			var resp TokenResponse
			if len(args) > 0 {
				r := args[0]
				resp.AccessToken = stringField(r, "access_token")
				resp.Scope = stringField(r, "scope")
				resp.Error = stringField(r, "error")
				resp.ErrorDescription = stringField(r, "error_description")
				if v := r.Get("expires_in"); v.Type() == js.TypeNumber {
					resp.ExpiresIn = v.Int()
				}
			}
			handle(resp)
			return nil
		})
		wire["callback"] = cb
	}

	var client js.Value
	err := jsCall(func() { client = accounts().Get("oauth2").Call("initTokenClient", js.ValueOf(wire)) })
	if err != nil {
		if cfg.Callback != nil {
			cb.Release()
		}
		return nil, err
	}
	return jsTokenClient{v: client}, nil
}

type jsTokenClient struct {
	v js.Value
}

func (c jsTokenClient) RequestAccessToken(override OverridableTokenClientConfig) {
	_ = jsCall(func() { c.v.Call("requestAccessToken", js.ValueOf(override.Wire())) })
}

type jsDocument struct{}

func (jsDocument) findScript(src string) js.Value {
	scripts := js.Global().Get("document").Call("getElementsByTagName", "script")
	for i := range scripts.Length() {
		s := scripts.Index(i)
		if stringField(s, "src") == src {
			return s
		}
	}
	return js.Null()
}

// HasScript reports true once the library namespace exists.
func (d jsDocument) HasScript(src string) bool {
	a := accounts()
	return !a.IsUndefined() && !a.Get("id").IsUndefined()
}

// AppendScript reuses a tag that is still loading instead of injecting a second one.
func (d jsDocument) AppendScript(src string, onLoad func(), onError func(error)) {
	doc := js.Global().Get("document")
	script := d.findScript(src)
	inject := script.IsNull()
	if inject {
		script = doc.Call("createElement", "script")
		script.Set("src", src)
		script.Set("async", true)
		script.Set("defer", true)
	}

	var load, fail js.Func
	load = js.FuncOf(func(js.Value, []js.Value) any {
		load.Release()
		fail.Release()
		go onLoad()
		return nil
	})
	fail = js.FuncOf(func(js.Value, []js.Value) any {
		load.Release()
		fail.Release()
		go onError(fmt.Errorf("script %s failed to load", src))
		return nil
	})
	script.Call("addEventListener", "load", load)
	script.Call("addEventListener", "error", fail)

	if inject {
		doc.Get("head").Call("appendChild", script)
	}
}

func (jsDocument) ClickButton(elementID, selector string) error {
	doc := js.Global().Get("document")
	el := doc.Call("getElementById", elementID)
	if el.IsNull() {
		return fmt.Errorf("element #%s not found", elementID)
	}
	btn := el.Call("querySelector", selector)
	if btn.IsNull() {
		return fmt.Errorf("no %s inside #%s", selector, elementID)
	}
	return jsCall(func() { btn.Call("dispatchEvent", js.Global().Get("Event").New("click")) })
}
