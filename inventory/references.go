package inventory

// RequireKind checks that p exists and is tracked the way entity needs.
// A nil p means the product was not found.
func RequireKind(entity Entity, name string, p *Product) error {
	if p == nil {
		return &ReferentialError{Entity: entity, Product: name, Reason: "does not exist"}
	}
	switch entity {
	case EntityConsumableLot:
		if !p.IsConsumable {
			return &ReferentialError{Entity: entity, Product: name, Reason: "is not a consumable product"}
		}
	case EntityNonConsumableEvent:
		if p.IsConsumable {
			return &ReferentialError{Entity: entity, Product: name, Reason: "is not a non-consumable product"}
		}
	}
	return nil
}

// CheckProductChange rejects changes that would orphan dependent rows.
func CheckProductChange(before, after *Product, dependents int) error {
	if dependents == 0 {
		return nil
	}
	if before.IsConsumable != after.IsConsumable {
		return &ReferentialError{Entity: EntityProduct, Product: before.Name, Reason: "consumable flag cannot change while lots or events exist"}
	}
	if before.Name != after.Name {
		return &ReferentialError{Entity: EntityProduct, Product: before.Name, Reason: "cannot be renamed while lots or events exist"}
	}
	return nil
}
