package takarik

// Errors is the per-field validation error map: field name to an ordered
// list of message strings.
type Errors map[string][]string

// Add appends a message for the given field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Any reports whether the map holds at least one message.
func (e Errors) Any() bool {
	return len(e) > 0
}

// On returns the messages recorded for the given field.
func (e Errors) On(field string) []string {
	return e[field]
}

// merge folds the messages of other into e.
func (e Errors) merge(other Errors) {
	for field, msgs := range other {
		e[field] = append(e[field], msgs...)
	}
}

// A Validator checks a record and returns its validation errors. A nil or
// empty result means the record is valid. Validation rule bodies live
// outside this layer; only the invocation contract matters here.
type Validator interface {
	Validate(r *Record) Errors
}

// ValidatorFunc is an adapter allowing ordinary functions to be used as
// validators.
type ValidatorFunc func(r *Record) Errors

// Validate calls f(r).
func (f ValidatorFunc) Validate(r *Record) Errors {
	return f(r)
}

// Validates registers validators for an entity type. They run once per
// save, between the before_validation and after_validation phases, in
// registration order.
func (r *Registry) Validates(entity string, vs ...Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[entity] = append(r.validators[entity], vs...)
}

// runValidators collects the errors of every validator registered for the
// record's entity type.
func (r *Registry) runValidators(rec *Record) Errors {
	r.mu.RLock()
	vs := r.validators[rec.entity.Name]
	r.mu.RUnlock()
	errs := Errors{}
	for _, v := range vs {
		if got := v.Validate(rec); got.Any() {
			errs.merge(got)
		}
	}
	return errs
}
