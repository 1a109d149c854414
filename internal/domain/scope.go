package domain

// Scope is the deployment allowlist applied once after loading. An empty list
// leaves that dimension unrestricted.
type Scope struct {
	Indicators     []string
	Municipalities []string
	Years          []string
}

// Apply keeps the records inside the scope.
func (s Scope) Apply(records []IndicatorRecord) []IndicatorRecord {
	indicators := optionalSet(s.Indicators)
	municipalities := optionalSet(s.Municipalities)
	years := optionalSet(s.Years)

	out := make([]IndicatorRecord, 0, len(records))
	for _, r := range records {
		if !inOptional(indicators, r.IndicatorCode) ||
			!inOptional(municipalities, r.IBGECode) ||
			!inOptional(years, r.Year) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func optionalSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	return toSet(values)
}

func inOptional(set map[string]struct{}, v string) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}
