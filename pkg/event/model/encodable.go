package model

import (
	"encoding/json"
	"sort"
	"strconv"
)

// DropUnencodable removes the free-form values that cannot be encoded as JSON (NaN, channels,
// functions, cyclic values ...) from extra, contexts, breadcrumb, mechanism and span data. It
// returns the paths of the removed values. Nested maps are walked so that one bad leaf does not
// take its siblings with it.
func (e *Event) DropUnencodable() []string {
	if e == nil {
		return nil
	}
	var dropped []string
	dropped = dropUnencodable("extra", e.Extra, dropped)
	for _, name := range sortedKeys(e.Contexts) {
		dropped = dropUnencodable("contexts."+name, e.Contexts[name], dropped)
	}
	for i := range e.Breadcrumbs {
		dropped = dropUnencodable("breadcrumbs."+strconv.Itoa(i)+".data", e.Breadcrumbs[i].Data, dropped)
	}
	if e.Exception != nil {
		for i := range e.Exception.Values {
			if mechanism := e.Exception.Values[i].Mechanism; mechanism != nil {
				dropped = dropUnencodable("exception."+strconv.Itoa(i)+".mechanism.data", mechanism.Data, dropped)
			}
		}
	}
	for i := range e.Spans {
		dropped = dropUnencodable("spans."+strconv.Itoa(i)+".data", e.Spans[i].Data, dropped)
	}
	return dropped
}

func dropUnencodable(path string, m map[string]any, dropped []string) []string {
	for _, key := range sortedKeys(m) {
		if nested, ok := m[key].(map[string]any); ok {
			dropped = dropUnencodable(path+"."+key, nested, dropped)
			continue
		}
		if _, err := json.Marshal(m[key]); err != nil {
			delete(m, key)
			dropped = append(dropped, path+"."+key)
		}
	}
	return dropped
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
