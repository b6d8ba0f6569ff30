package mapping

import (
	"fmt"
	"strings"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/hashicorp/go-multierror"
)

var knownKinds = map[string]bool{
	KindString: true, KindDisplay: true, KindPhone: true, KindInt: true,
	KindDecimal: true, KindBool: true, KindTime: true, KindClock: true,
	KindConst: true, KindLookup: true, KindUpper: true, KindLower: true, KindJoin: true,
}

// Validate checks one descriptor in isolation and reports every problem found.
func (t *Table) Validate() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%s: "+format, append([]any{t.label()}, args...)...))
	}
	ident := func(field, value string) {
		if err := dialect.ValidateIdentifier(value); err != nil {
			fail("%s: %v", field, err)
		}
	}

	ident("name", t.Name)
	ident("source.table", t.Source.Table)
	ident("source.key", t.Source.Key)
	ident("target.table", t.Target.Table)
	ident("target.id_column", t.Target.IDColumn)

	if t.Source.BatchSize < 0 || t.Source.BatchSize > MaxBatchSize {
		fail("source.batch_size must be between 1 and %d (got %d)", MaxBatchSize, t.Source.BatchSize)
	}

	if t.Target.LegacyColumn == "" && len(t.Target.MatchOn) == 0 {
		fail("target needs legacy_column or match_on to map migrated rows")
	}

	targets := make(map[string]bool)
	for i, c := range t.Columns {
		name := c.TargetName()
		field := fmt.Sprintf("columns[%d]", i)
		if name == "" {
			fail("%s: source or target is required", field)
			continue
		}
		ident(field+".target", name)
		if targets[name] {
			fail("%s: duplicate target column %q", field, name)
		}
		targets[name] = true

		kind := c.EffectiveKind()
		if !knownKinds[kind] {
			fail("%s: unknown kind %q", field, kind)
			continue
		}
		switch {
		case kind == KindConst:
			if c.Value == nil {
				fail("%s: const column %q needs a value", field, name)
			}
		case c.Derived():
			if len(c.From) == 0 {
				fail("%s: %s column %q needs from", field, kind, name)
			}
		case c.Source == "":
			fail("%s: %s column %q needs a source", field, kind, name)
		}
		if kind == KindLookup && len(c.Values) == 0 {
			fail("%s: lookup column %q needs values", field, name)
		}
		if c.Passthrough && kind != KindLookup {
			fail("%s: passthrough only applies to lookup columns", field)
		}
		if c.Round != nil && *c.Round < 0 {
			fail("%s: round must not be negative", field)
		}
	}

	for i, c := range t.Columns {
		if !c.Derived() {
			continue
		}
		for _, in := range c.From {
			if !targets[in] {
				fail("columns[%d]: %q derives from unknown column %q", i, c.TargetName(), in)
			}
		}
	}

	if !t.mapsKey() {
		fail("source key %q is not mapped by any column", t.SourceKeyColumn())
	}
	if t.Target.GenerateID && targets[t.Target.IDColumn] {
		fail("id column %q is generated and cannot also be mapped", t.Target.IDColumn)
	}

	if t.Target.LegacyColumn != "" {
		ident("target.legacy_column", t.Target.LegacyColumn)
		if key := t.KeyColumn(); key != t.Target.LegacyColumn {
			fail("source key %q must be mapped to legacy column %q (mapped to %q)", t.Source.Key, t.Target.LegacyColumn, key)
		}
	}

	// Timestamp columns missing from the mapping are produced by the fill policy.
	for _, ts := range []string{t.Timestamps.Created, t.Timestamps.Updated} {
		if ts == "" {
			continue
		}
		ident("timestamps", ts)
		targets[ts] = true
	}
	if (t.Timestamps.Created == "") != (t.Timestamps.Updated == "") {
		fail("timestamps need both created and updated")
	}

	refTargets := make(map[string]bool)
	for i, r := range t.References {
		field := fmt.Sprintf("references[%d]", i)
		if r.Column == "" || r.Entity == "" || r.Target == "" {
			fail("%s: column, entity and target are required", field)
			continue
		}
		if !targets[r.Column] {
			fail("%s: column %q is not a mapped column", field, r.Column)
		}
		ident(field+".target", r.Target)
		if r.Target != r.Column && (targets[r.Target] || refTargets[r.Target]) {
			fail("%s: target %q is already produced by another column", field, r.Target)
		}
		refTargets[r.Target] = true
		if r.Attribute != "" {
			ident(field+".attribute", r.Attribute)
		}
		if r.Required && r.Default != nil {
			fail("%s: a required reference cannot have a default", field)
		}
	}

	for _, m := range t.Target.MatchOn {
		if !targets[m] && !refTargets[m] {
			fail("target.match_on column %q is not produced by any column or reference", m)
		}
	}

	for _, p := range t.Target.Prefer {
		col := strings.TrimPrefix(p, "-")
		if !targets[col] && !refTargets[col] {
			fail("target.prefer column %q is not produced by any column or reference", col)
		}
	}
	if len(t.Target.Prefer) > 0 && len(t.Target.MatchOn) == 0 {
		fail("target.prefer needs match_on")
	}

	for _, d := range t.Drop {
		if !targets[d] && !refTargets[d] {
			fail("drop column %q is not produced by any column or reference", d)
		}
		if d == t.KeyColumn() {
			fail("drop column %q is the legacy key", d)
		}
	}

	return result.ErrorOrNil()
}

func (t *Table) mapsKey() bool {
	key := t.SourceKeyColumn()
	for _, c := range t.Columns {
		if c.Source == key && !c.Derived() && c.EffectiveKind() != KindConst && c.EffectiveKind() != KindLookup {
			return true
		}
	}
	return false
}

func (t *Table) label() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Source.Table != "" {
		return t.Source.Table
	}
	return "<unnamed table>"
}
