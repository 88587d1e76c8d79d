package schema

const defaultRehearsalInfo = "Toda Quarta-feira às 19:30 e Domingo às 17:30.\n\n" +
	"AVISO: Proibido chegar mais que 10 minutos atrasado sem aviso prévio!"

// Seed returns the initial document used when neither the local mirror nor
// the remote store has one: the fixed minister roster with empty song lists
// and the default rehearsal notice, identical in draft and published form.
func Seed() *Document {
	roster := Snapshot{
		Ministers: []Minister{
			{ID: "minister-neto", Name: "Neto", Songs: []Song{}},
			{ID: "minister-mayke", Name: "Mayke", Songs: []Song{}},
			{ID: "minister-alisson", Name: "Alisson", Songs: []Song{}},
			{ID: "minister-lilian", Name: "Lilian", Songs: []Song{}},
			{ID: "minister-andressa", Name: "Andressa", Songs: []Song{}},
			{ID: "minister-carlao", Name: "Carlão", Songs: []Song{}},
		},
		ScaleImages:   []ScaleImage{},
		RehearsalInfo: defaultRehearsalInfo,
	}

	return &Document{
		Published: *roster.Clone(),
		Draft:     *roster.Clone(),
		Logs:      []AuditEntry{},
	}
}
