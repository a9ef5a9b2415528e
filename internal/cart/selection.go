package cart

import (
	"encoding/json"
	"fmt"
	"sort"

	"xquisito-tap/internal/domain"
)

// DecodeSelection parses a raw JSON selection using the field's declared type:
// a string for dropdowns, a list for checkboxes, an object of quantities for
// dropdown-quantity fields.
func DecodeSelection(field domain.CustomField, raw json.RawMessage) (domain.Selection, error) {
	switch field.Type {
	case domain.FieldSingle:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("%w: field %s expects one option id", domain.ErrValidation, field.ID)
		}
		return domain.SingleChoice{FieldID: field.ID, OptionID: id}, nil
	case domain.FieldMulti:
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("%w: field %s expects a list of option ids", domain.ErrValidation, field.ID)
		}
		return domain.MultiChoice{FieldID: field.ID, OptionIDs: ids}, nil
	case domain.FieldSingleQuantity:
		var qty map[string]int
		if err := json.Unmarshal(raw, &qty); err != nil {
			return nil, fmt.Errorf("%w: field %s expects option quantities", domain.ErrValidation, field.ID)
		}
		return domain.QuantityMap{FieldID: field.ID, Quantities: qty}, nil
	default:
		return nil, fmt.Errorf("%w: field %s has unknown type %q", domain.ErrValidation, field.ID, field.Type)
	}
}

// DecodeSelections decodes a field id -> raw value map against a menu item.
func DecodeSelections(item domain.MenuItem, raw map[string]json.RawMessage) ([]domain.Selection, error) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.Selection, 0, len(raw))
	for _, id := range ids {
		field, ok := item.Field(id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %s", domain.ErrValidation, id)
		}
		sel, err := DecodeSelection(field, raw[id])
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// ResolveSelections validates selections against the item's custom fields and
// returns the resolved fields with their extra price.
func ResolveSelections(item domain.MenuItem, selections []domain.Selection) ([]domain.SelectedField, float64, error) {
	byField := make(map[string]domain.Selection, len(selections))
	for _, s := range selections {
		if _, dup := byField[s.Field()]; dup {
			return nil, 0, fmt.Errorf("%w: field %s selected twice", domain.ErrValidation, s.Field())
		}
		if _, ok := item.Field(s.Field()); !ok {
			return nil, 0, fmt.Errorf("%w: unknown field %s", domain.ErrValidation, s.Field())
		}
		byField[s.Field()] = s
	}

	var resolved []domain.SelectedField
	for _, field := range item.CustomFields {
		sel, ok := byField[field.ID]
		var picks map[string]int
		if ok {
			picks = sel.Picks()
		}
		if len(picks) == 0 {
			if field.Required {
				return nil, 0, fmt.Errorf("%w: %s is required", domain.ErrValidation, field.Name)
			}
			continue
		}
		if field.Type == domain.FieldSingle && len(picks) > 1 {
			return nil, 0, fmt.Errorf("%w: %s allows one option", domain.ErrValidation, field.Name)
		}
		if field.MaxSelections > 0 && len(picks) > field.MaxSelections {
			return nil, 0, fmt.Errorf("%w: %s allows at most %d options", domain.ErrValidation, field.Name, field.MaxSelections)
		}

		optIDs := make([]string, 0, len(picks))
		for id := range picks {
			optIDs = append(optIDs, id)
		}
		sort.Strings(optIDs)

		sf := domain.SelectedField{FieldID: field.ID, FieldName: field.Name}
		for _, id := range optIDs {
			opt, ok := field.Option(id)
			if !ok {
				return nil, 0, fmt.Errorf("%w: unknown option %s for %s", domain.ErrValidation, id, field.Name)
			}
			sf.SelectedOptions = append(sf.SelectedOptions, domain.SelectedOption{
				OptionID:   opt.ID,
				OptionName: opt.Name,
				Price:      opt.Price,
				Quantity:   picks[id],
			})
		}
		resolved = append(resolved, sf)
	}
	return resolved, domain.ExtraPrice(resolved), nil
}
