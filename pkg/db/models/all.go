package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&User{},
		&PlayerProfile{},
		&Category{},
		&Product{},
		&Cart{},
		&CartLine{},
		&Order{},
		&Payment{},
		&PaymentEvent{},
		&Tournament{},
		&Team{},
		&Participant{},
	}
}
