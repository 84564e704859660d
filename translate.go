package userforms

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Translator resolves user-visible strings. Messages are fmt-style formats;
// only constant formats are passed through it, never user input.
type Translator interface {
	T(format string, args ...any) string
}

// CatalogTranslator prints messages through an x/text message catalog.
type CatalogTranslator struct {
	printer *message.Printer
}

// NewTranslator returns a translator for the given BCP 47 tag. Unknown or
// unparsable tags fall back to English.
func NewTranslator(lang string) *CatalogTranslator {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &CatalogTranslator{printer: message.NewPrinter(tag)}
}

func (c *CatalogTranslator) T(format string, args ...any) string {
	return c.printer.Sprintf(format, args...)
}

// tr translates through t, or formats as-is when no translator is set.
func tr(t Translator, format string, args ...any) string {
	if t == nil {
		return fmt.Sprintf(format, args...)
	}
	return t.T(format, args...)
}

var frenchCatalog = []struct{ key, msg string }{
	{"Email updated successfully.", "Adresse e-mail mise à jour."},
	{"Password updated successfully.", "Mot de passe mis à jour."},
	{"The changes have been saved.", "Les modifications ont été enregistrées."},
	{"Change Email", "Modifier l'adresse e-mail"},
	{"Change Password", "Modifier le mot de passe"},
	{"Current password", "Mot de passe actuel"},
	{"Email address", "Adresse e-mail"},
	{"Email", "E-mail"},
	{"Password", "Mot de passe"},
	{"Save", "Enregistrer"},
	{"Cancel", "Annuler"},
	{"Log out", "Se déconnecter"},
	{"The specified passwords do not match.", "Les mots de passe saisis ne correspondent pas."},
	{"Required if you want to change the %s below.", "Requis si vous souhaitez modifier le champ %s ci-dessous."},
	{"Your current password is missing or incorrect; it's required to change the %s.",
		"Votre mot de passe actuel est manquant ou incorrect ; il est requis pour modifier le champ %s."},
}

func init() {
	for _, e := range frenchCatalog {
		message.SetString(language.French, e.key, e.msg)
	}
}
