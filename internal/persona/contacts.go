package persona

// Sidebar contacts besides the individual personas
const (
	ContactCouncil = "council"
	ContactDiary   = "diario"
)

// DefaultCouncil is who answers in a council thread with no project override
var DefaultCouncil = []string{Flavio, Conrado, Rafa}

// Contacts lists the conversation entry points in sidebar order
var Contacts = []string{Flavio, Conrado, Rafa, ContactCouncil, ContactDiary}

// ContactName returns a display name for a contact id
func ContactName(id string) string {
	switch id {
	case ContactCouncil:
		return "Conselho Pleno"
	case ContactDiary:
		return "Diário"
	case "":
		return "-"
	}
	return Name(id)
}

// DefaultThreadTitle is the title given to a new thread with contactID
func DefaultThreadTitle(contactID string) string {
	if contactID == ContactDiary {
		return "Sessão de Despejo"
	}
	return "Nova Conversa"
}

// DefaultTargets returns who answers by default in a thread. A project's
// default advisors take precedence; a project with none falls back to the
// default council.
func DefaultTargets(contactID string, projectAgents []string, inProject bool) []string {
	if inProject {
		if len(projectAgents) > 0 {
			return append([]string(nil), projectAgents...)
		}
		return append([]string(nil), DefaultCouncil...)
	}
	switch contactID {
	case ContactCouncil:
		return append([]string(nil), DefaultCouncil...)
	case ContactDiary:
		return nil
	}
	if Valid(contactID) {
		return []string{contactID}
	}
	return append([]string(nil), DefaultCouncil...)
}
