package chain

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// PromptTemplate renders a question into the prompt sent to the model. It uses
// Go template syntax with a single .Question variable.
type PromptTemplate struct {
	tmpl *template.Template
}

// DefaultTemplate frames a bare question as a human/assistant exchange.
const DefaultTemplate = "Human: {{.Question}}\n\nAssistant:"

func NewPromptTemplate(text string) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse prompt template")
	}
	return &PromptTemplate{tmpl: tmpl}, nil
}

func MustPromptTemplate(text string) *PromptTemplate {
	tmpl, err := NewPromptTemplate(text)
	if err != nil {
		panic(err)
	}
	return tmpl
}

func (pt *PromptTemplate) Render(question string) (string, error) {
	sb := &strings.Builder{}
	err := pt.tmpl.Execute(sb, struct{ Question string }{Question: question})
	if err != nil {
		return "", errors.Wrap(err, "could not render prompt template")
	}
	return sb.String(), nil
}
