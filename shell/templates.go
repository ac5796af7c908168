package shell

import (
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/hazyhaar/contacts/contacts"
	"github.com/hazyhaar/contacts/shield"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves app.css and app.js.
func Static() fs.FS {
	sub, _ := fs.Sub(staticFS, "static")
	return sub
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"chrome", "index", "contact", "edit", "error"} {
		pages[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
}

// viewModel is what the page templates execute against.
type viewModel struct {
	Title     string
	Page      Page
	Flash     *shield.FlashMessage
	Contact   *contacts.Contact
	FormError string
	Error     *pageError
}

type pageError struct {
	Status  int
	Title   string
	Message string
}

func renderPage(w io.Writer, name string, vm viewModel) error {
	if vm.Title == "" {
		vm.Title = "Contacts"
	}
	return pages[name].ExecuteTemplate(w, "layout", vm)
}

func renderChrome(w io.Writer, p Page) error {
	return renderPage(w, "chrome", viewModel{Page: p})
}
