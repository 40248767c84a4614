package model

// Clone returns a copy of the event whose maps, slices, exceptions and frames can be mutated
// without affecting the original.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.TransactionInfo != nil {
		info := *e.TransactionInfo
		c.TransactionInfo = &info
	}
	c.Tags = cloneStringMap(e.Tags)
	c.Extra = cloneAnyMap(e.Extra)
	if e.User != nil {
		user := *e.User
		user.Data = cloneStringMap(e.User.Data)
		c.User = &user
	}
	if e.Breadcrumbs != nil {
		c.Breadcrumbs = append([]Breadcrumb(nil), e.Breadcrumbs...)
		for i := range c.Breadcrumbs {
			c.Breadcrumbs[i].Data = cloneAnyMap(c.Breadcrumbs[i].Data)
		}
	}
	if e.Contexts != nil {
		c.Contexts = make(map[string]map[string]any, len(e.Contexts))
		for k, v := range e.Contexts {
			c.Contexts[k] = cloneAnyMap(v)
		}
	}
	if e.Exception != nil {
		values := make([]Exception, len(e.Exception.Values))
		for i, exception := range e.Exception.Values {
			values[i] = exception.clone()
		}
		c.Exception = &ExceptionList{Values: values}
	}
	if e.DebugMeta != nil {
		c.DebugMeta = &DebugMeta{Images: append([]DebugImage(nil), e.DebugMeta.Images...)}
	}
	if e.Fingerprint != nil {
		c.Fingerprint = append([]string(nil), e.Fingerprint...)
	}
	if e.Request != nil {
		request := *e.Request
		request.Headers = cloneStringMap(e.Request.Headers)
		c.Request = &request
	}
	if e.Spans != nil {
		c.Spans = append([]SpanPayload(nil), e.Spans...)
		for i := range c.Spans {
			c.Spans[i].Data = cloneAnyMap(c.Spans[i].Data)
			c.Spans[i].Tags = cloneStringMap(c.Spans[i].Tags)
		}
	}
	return &c
}

func (ex Exception) clone() Exception {
	if ex.Stacktrace != nil {
		ex.Stacktrace = &Stacktrace{Frames: append([]Frame(nil), ex.Stacktrace.Frames...)}
	}
	if ex.Mechanism != nil {
		mechanism := *ex.Mechanism
		if ex.Mechanism.Handled != nil {
			handled := *ex.Mechanism.Handled
			mechanism.Handled = &handled
		}
		mechanism.Data = cloneAnyMap(ex.Mechanism.Data)
		ex.Mechanism = &mechanism
	}
	return ex
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneAnyMap(nested)
		}
		c[k] = v
	}
	return c
}
