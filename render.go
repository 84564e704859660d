package userforms

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Action is a form button or link.
type Action struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"` // "submit" or "link"
	Title   string   `json:"title"`
	URL     string   `json:"url,omitempty"`
	Classes []string `json:"classes,omitempty"`
}

// Section is a read-only block shown above the fields, such as the current
// email address with a link to change it.
type Section struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Value   string   `json:"value,omitempty"`
	Link    *Action  `json:"link,omitempty"`
	Weight  int      `json:"weight"`
	Classes []string `json:"classes,omitempty"`
}

// Form is the render model of one form page.
type Form struct {
	ID       string       `json:"form_id"`
	Title    string       `json:"title"`
	BuildID  string       `json:"form_build_id,omitempty"`
	Action   string       `json:"action"`
	Sections []Section    `json:"sections,omitempty"`
	Fields   []FieldSpec  `json:"fields"`
	Actions  []Action     `json:"actions"`
	Errors   []FieldError `json:"errors,omitempty"`
	Messages []string     `json:"messages,omitempty"`
}

// Field returns the named field, or nil.
func (f *Form) Field(name string) *FieldSpec {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Section returns the named section, or nil.
func (f *Form) Section(name string) *Section {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// ActionNamed returns the named action, or nil.
func (f *Form) ActionNamed(name string) *Action {
	for i := range f.Actions {
		if f.Actions[i].Name == name {
			return &f.Actions[i]
		}
	}
	return nil
}

// SetErrors attaches field errors to the form and to the matching fields.
func (f *Form) SetErrors(errs []FieldError) {
	f.Errors = errs
	for _, fe := range errs {
		if field := f.Field(fe.Field); field != nil {
			field.Error = fe.Message
		}
	}
}

func (f *Form) sortByWeight() {
	sort.SliceStable(f.Sections, func(i, j int) bool { return f.Sections[i].Weight < f.Sections[j].Weight })
	sort.SliceStable(f.Fields, func(i, j int) bool { return f.Fields[i].Weight < f.Fields[j].Weight })
}

var primaryButton = []string{"button", "button--primary"}
var secondaryButton = []string{"button", "button--secondary"}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// RenderForm writes the form as JSON for API clients and as HTML otherwise.
func RenderForm(w http.ResponseWriter, r *http.Request, status int, f *Form) {
	f.sortByWeight()
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(f)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, f); err != nil {
		slog.Warn("error rendering form", "form", f.ID, "err", err)
	}
}

// writeError answers with a JSON error for API clients and plain text otherwise.
func writeError(w http.ResponseWriter, r *http.Request, status int, authErr *AuthError) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(authErr)
		return
	}
	http.Error(w, authErr.Message, status)
}

var formTemplate = template.Must(template.New("form").Funcs(template.FuncMap{
	"lines":   func(s string) []string { return strings.Split(s, "\n") },
	"classes": func(c []string) string { return strings.Join(c, " ") },
}).Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
{{range .Messages}}<div class="messages messages--status">{{.}}</div>
{{end}}<h2 class="heading">{{.Title}}</h2>
<form id="{{.ID}}" method="POST" action="{{.Action}}">
{{range .Sections}}<div class="{{classes .Classes}}">
	<div class="cf-form-label pseudo-label-above">{{.Label}}</div>
	{{if .Value}}<div class="cf-static-value">{{.Value}}</div>{{end}}
	{{with .Link}}<a href="{{.URL}}" class="{{classes .Classes}}">{{.Title}}</a>{{end}}
</div>
{{end}}{{range .Fields}}{{if .Visible}}<div class="form-item">
	{{if .Title}}<label for="edit-{{.Name}}">{{.Title}}</label>{{end}}
	{{if eq .Type "password_confirm"}}<input type="password" id="edit-{{.Name}}-pass1" name="{{.Name}}[pass1]" size="{{.Size}}">
	<input type="password" id="edit-{{.Name}}-pass2" name="{{.Name}}[pass2]" size="{{.Size}}">
	{{else}}<input type="{{.Type}}" id="edit-{{.Name}}" name="{{.Name}}" value="{{.Value}}"{{if .Size}} size="{{.Size}}"{{end}}{{if .Required}} required{{end}}{{if .Autocomplete}} autocomplete="{{.Autocomplete}}"{{end}}>
	{{end}}{{if .Description}}<div class="description">{{.Description}}</div>{{end}}
	{{if .Error}}<div class="form-item--error-message">{{range lines .Error}}{{.}}<br>{{end}}</div>{{end}}
</div>
{{end}}{{end}}<input type="hidden" name="form_build_id" value="{{.BuildID}}">
<input type="hidden" name="form_id" value="{{.ID}}">
<div class="form-actions">
{{range .Actions}}{{if eq .Type "submit"}}<button type="submit" name="op" value="{{.Name}}" class="{{classes .Classes}}">{{.Title}}</button>
{{else}}<a href="{{.URL}}" class="{{classes .Classes}}">{{.Title}}</a>
{{end}}{{end}}</div>
</form>
</body>
</html>
`))
