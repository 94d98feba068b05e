package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/concordia/internal/model"
)

// Entity types found in extraction output, in processing order
var EntityTypes = []string{"people", "organizations", "locations", "publications", "artifacts", "events"}

// RelationsKey holds the relations between entities of one bulletin
const RelationsKey = "relations"

// PreferredFields names the field each entity type takes its canonical name
// from. Types not listed use "name".
var PreferredFields = map[string]string{
	"people":        "inferred_full_name",
	"organizations": "official_name",
	"publications":  "title",
	"events":        "name",
	"locations":     "name",
}

// Fields added to every flattened entity
const (
	FieldRawEntityID        = "raw_entity_id"
	FieldBulletinID         = "bulletin_id"
	FieldCanonicalName      = "canonical_name"
	FieldParticipantsGlobal = "participants_global"
	FieldParticipantsLabel  = "participants_label"
)

// Flattened holds one record collection per entity type plus the relations
type Flattened struct {
	Entities  map[string][]model.Record
	Relations []model.Record
	Skipped   int      // Entities and relations dropped as invalid
	Warnings  []string // One line per dropped or unresolved item
}

// Count returns the number of records of an entity type, or of relations
func (f *Flattened) Count(entityType string) int {
	if entityType == RelationsKey {
		return len(f.Relations)
	}
	return len(f.Entities[entityType])
}

// Flattener turns bulletins into flat records
type Flattener struct {
	logger *zap.Logger
}

// NewFlattener creates a new flattener
func NewFlattener(logger *zap.Logger) *Flattener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flattener{logger: logger}
}

// Flatten assigns every entity a global id of the form <bulletin>_<local id>
// and a canonical name, resolves event participants to those ids and keeps
// the relations whose endpoints both exist. Input maps are not modified.
func (f *Flattener) Flatten(bulletins []Bulletin) *Flattened {
	out := &Flattened{Entities: make(map[string][]model.Record, len(EntityTypes))}
	for _, etype := range EntityTypes {
		out.Entities[etype] = []model.Record{}
	}
	out.Relations = []model.Record{}

	// global id -> canonical name, shared across bulletins
	lookup := make(map[string]string)

	for _, b := range bulletins {
		var events []model.Record

		for _, etype := range EntityTypes {
			items, _ := b.Output[etype].([]any)
			for _, item := range items {
				raw, ok := item.(map[string]any)
				if !ok {
					f.warn(out, fmt.Sprintf("skipping invalid %s in bulletin %s: not an object", etype, b.ID))
					out.Skipped++
					continue
				}

				record := flattenEntity(b.ID, etype, raw)
				if id, _ := record[FieldRawEntityID].(string); id != "" {
					lookup[id] = record[FieldCanonicalName].(string)
				}
				out.Entities[etype] = append(out.Entities[etype], record)
				if etype == "events" {
					events = append(events, record)
				}
			}
		}

		// participants may name any entity of the bulletin, so resolve them
		// once every entity is known
		for _, event := range events {
			if _, ok := event["participants"]; ok {
				f.resolveParticipants(out, b.ID, event, lookup)
			}
		}

		relations, _ := b.Output[RelationsKey].([]any)
		for _, item := range relations {
			if record, ok := f.flattenRelation(out, b.ID, item, lookup); ok {
				out.Relations = append(out.Relations, record)
			}
		}
	}

	return out
}

func flattenEntity(bulletinID, etype string, raw map[string]any) model.Record {
	record := make(model.Record, len(raw)+3)
	for k, v := range raw {
		record[k] = v
	}

	localID := idString(raw["id"])
	var globalID any
	if localID != "" {
		globalID = bulletinID + "_" + localID
	}

	field, ok := PreferredFields[etype]
	if !ok {
		field = "name"
	}
	canonical := firstNonEmpty(raw[field], raw["name"])
	if canonical == "" {
		canonical = localID
	}

	record[FieldRawEntityID] = globalID
	record[FieldBulletinID] = bulletinID
	record[FieldCanonicalName] = canonical
	return record
}

func (f *Flattener) resolveParticipants(out *Flattened, bulletinID string, event model.Record, lookup map[string]string) {
	values := model.ParseList(event["participants"])

	globals := make([]string, 0, len(values))
	labels := make([]string, 0, len(values))
	for _, pid := range values {
		global := bulletinID + "_" + pid
		globals = append(globals, global)

		if label, ok := lookup[global]; ok {
			labels = append(labels, label)
			continue
		}
		f.warn(out, fmt.Sprintf("participant %q not found in bulletin %s", global, bulletinID))
		labels = append(labels, "[MISSING:"+global+"]")
	}

	event[FieldParticipantsGlobal] = globals
	event[FieldParticipantsLabel] = labels
}

func (f *Flattener) flattenRelation(out *Flattened, bulletinID string, item any, lookup map[string]string) (model.Record, bool) {
	rel, ok := item.(map[string]any)
	if !ok {
		f.warn(out, fmt.Sprintf("skipping invalid relation in bulletin %s: not an object", bulletinID))
		out.Skipped++
		return nil, false
	}

	src, tgt := idString(rel["source_id"]), idString(rel["target_id"])
	if src == "" || tgt == "" {
		f.warn(out, fmt.Sprintf("missing source/target in relation (bulletin %s)", bulletinID))
		out.Skipped++
		return nil, false
	}

	srcGlobal, tgtGlobal := bulletinID+"_"+src, bulletinID+"_"+tgt
	srcLabel, ok := lookup[srcGlobal]
	if !ok {
		f.warn(out, fmt.Sprintf("missing source entity %q in bulletin %s", srcGlobal, bulletinID))
		out.Skipped++
		return nil, false
	}
	tgtLabel, ok := lookup[tgtGlobal]
	if !ok {
		f.warn(out, fmt.Sprintf("missing target entity %q in bulletin %s", tgtGlobal, bulletinID))
		out.Skipped++
		return nil, false
	}

	return model.Record{
		"bulletin_id":   bulletinID,
		"source_id":     srcGlobal,
		"target_id":     tgtGlobal,
		"source_label":  srcLabel,
		"target_label":  tgtLabel,
		"relation_type": rel["relation_type"],
		"certainty":     rel["certainty"],
	}, true
}

func (f *Flattener) warn(out *Flattened, msg string) {
	out.Warnings = append(out.Warnings, msg)
	f.logger.Warn(msg)
}

func firstNonEmpty(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
