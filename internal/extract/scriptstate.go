package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	scriptBudget    = 50 * time.Millisecond
	evalBudget      = 500 * time.Millisecond
	maxScripts      = 20
	maxScriptBytes  = 256 << 10
	maxWalkDepth    = 16
	maxWalkObjects  = 20000
	maxStateResults = 50
)

var errBudgetSpent = errors.New("script budget spent")

// ScriptStateCandidates looks for product-like objects (a name and a price)
// in inline application/json blobs and in globals assigned by inline scripts.
// Scripts run in an isolated VM with no host access. Each one gets a short
// time budget under an overall cap. Results are in document order.
func ScriptStateCandidates(doc *goquery.Document) []Candidate {
	var out []Candidate
	var sources []string

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		body := s.Text()
		if len(body) == 0 || len(body) > maxScriptBytes {
			return
		}

		switch {
		case typ == "application/json":
			if v, err := decodeJSON(strings.TrimSpace(body)); err == nil {
				out = append(out, walkState(v)...)
			}
		case typ == "" || typ == "text/javascript" || typ == "application/javascript":
			if len(sources) < maxScripts && strings.Contains(strings.ToLower(body), "price") {
				sources = append(sources, body)
			}
		}
	})

	if len(sources) > 0 {
		out = append(out, evaluateScripts(sources)...)
	}

	if len(out) > maxStateResults {
		out = out[:maxStateResults]
	}
	return out
}

// evaluateScripts runs the sources in one VM, as a browser would run them in
// one window, and walks the globals they define. Every step that can run page
// code, reading globals included, happens under an interrupt, and the whole
// evaluation stops once evalBudget is spent.
func evaluateScripts(sources []string) []Candidate {
	vm := goja.New()
	installBrowserStubs(vm)
	deadline := time.Now().Add(evalBudget)

	read, err := globalReader(vm)
	if err != nil {
		return nil
	}

	baseline := map[string]bool{}
	for _, k := range vm.GlobalObject().Keys() {
		baseline[k] = true
	}

	for i, src := range sources {
		err := guarded(vm, deadline, func() error {
			_, err := vm.RunString(src)
			return err
		})
		if errors.Is(err, errBudgetSpent) {
			break
		}
		if err != nil {
			log.Debug().Int("script", i).Err(err).Msg("Inline script failed")
		}
	}

	var keys []string
	if err := guarded(vm, deadline, func() error {
		keys = vm.GlobalObject().Keys()
		return nil
	}); err != nil {
		return nil
	}
	sort.Strings(keys)

	var out []Candidate
	for _, k := range keys {
		if baseline[k] {
			continue
		}
		var raw string
		err := guarded(vm, deadline, func() error {
			res, err := read(goja.Undefined(), vm.GlobalObject(), vm.ToValue(k))
			if err != nil {
				return err
			}
			if !goja.IsUndefined(res) {
				raw = res.String()
			}
			return nil
		})
		if errors.Is(err, errBudgetSpent) {
			break
		}
		if err != nil {
			log.Debug().Str("global", k).Err(err).Msg("Script global unreadable")
			continue
		}
		if raw == "" {
			continue
		}
		if v, err := decodeJSON(raw); err == nil {
			out = append(out, walkState(v)...)
		}
	}
	return out
}

// globalReader compiles a function that serialises one global to JSON. It
// binds JSON.stringify before page code runs so pages cannot replace it.
func globalReader(vm *goja.Runtime) (goja.Callable, error) {
	v, err := vm.RunString(`(function (stringify) {
		return function (g, k) {
			var v = g[k];
			if (v === null || v === undefined || typeof v === "function") {
				return undefined;
			}
			return stringify(v);
		};
	})(JSON.stringify)`)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("global reader is not callable")
	}
	return fn, nil
}

// guarded runs fn with the VM interrupt armed for scriptBudget, or less when
// the deadline is closer. It never runs fn once the deadline has passed.
func guarded(vm *goja.Runtime, deadline time.Time, fn func() error) (err error) {
	budget := time.Until(deadline)
	if budget <= 0 {
		return errBudgetSpent
	}
	if budget > scriptBudget {
		budget = scriptBudget
	}

	timer := time.AfterFunc(budget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
		if r := recover(); r != nil {
			err = fmt.Errorf("script aborted: %v", r)
		}
	}()
	return fn()
}

func installBrowserStubs(vm *goja.Runtime) {
	global := vm.GlobalObject()
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(name, noop)
	}

	document := vm.NewObject()
	_ = document.Set("cookie", "")
	_ = document.Set("addEventListener", noop)
	_ = document.Set("getElementById", func(goja.FunctionCall) goja.Value { return goja.Null() })
	_ = document.Set("querySelector", func(goja.FunctionCall) goja.Value { return goja.Null() })
	_ = document.Set("createElement", func(goja.FunctionCall) goja.Value { return vm.NewObject() })

	location := vm.NewObject()
	_ = location.Set("href", "")
	_ = location.Set("search", "")

	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", "Mozilla/5.0")
	_ = navigator.Set("language", "en-US")

	_ = global.Set("window", global)
	_ = global.Set("self", global)
	_ = global.Set("globalThis", global)
	_ = global.Set("console", console)
	_ = global.Set("document", document)
	_ = global.Set("location", location)
	_ = global.Set("navigator", navigator)
	_ = global.Set("addEventListener", noop)
	_ = global.Set("setTimeout", noop)
	_ = global.Set("setInterval", noop)
}

// walkState visits every object in v depth-first with sorted keys and
// returns the product-like ones.
func walkState(v any) []Candidate {
	var out []Candidate
	visited := 0

	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > maxWalkDepth || visited > maxWalkObjects || len(out) >= maxStateResults {
			return
		}
		switch t := v.(type) {
		case map[string]any:
			visited++
			if c, ok := stateCandidate(t); ok {
				out = append(out, c)
			}
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k], depth+1)
			}
		case []any:
			for _, item := range t {
				walk(item, depth+1)
			}
		}
	}
	walk(v, 0)

	return out
}

var (
	stateNameKeys     = []string{"name", "title", "productName", "displayName"}
	statePriceKeys    = []string{"price", "salePrice", "currentPrice", "finalPrice", "offerPrice", "priceValue"}
	stateNestedKeys   = []string{"value", "amount", "current", "formatted", "displayPrice"}
	stateCurrencyKeys = []string{"priceCurrency", "currency", "currencyCode"}
)

func stateCandidate(obj map[string]any) (Candidate, bool) {
	name := cleanText(pickString(obj, stateNameKeys...))
	if name == "" {
		return Candidate{}, false
	}

	price, currency := statePrice(obj)
	if price == nil {
		return Candidate{}, false
	}
	if currency == "" {
		currency = NormalizeCurrency(pickString(obj, stateCurrencyKeys...))
	}

	return Candidate{Name: name, Price: price, Currency: currency}, true
}

func statePrice(obj map[string]any) (*decimal.Decimal, string) {
	for _, k := range statePriceKeys {
		switch t := obj[k].(type) {
		case map[string]any:
			currency := NormalizeCurrency(pickString(t, stateCurrencyKeys...))
			for _, nk := range stateNestedKeys {
				if d, ok := ParseDeclaredPrice(scalarText(t[nk])); ok {
					return &d, currency
				}
			}
		default:
			if d, ok := ParseDeclaredPrice(scalarText(t)); ok {
				return &d, ""
			}
		}
	}
	return nil, ""
}

func pickString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// scalarText is stringValue extended with plain integers
func scalarText(v any) string {
	switch t := v.(type) {
	case int:
		return decimal.NewFromInt(int64(t)).String()
	case json.Number, string, float64, int64:
		return stringValue(t)
	}
	return ""
}
