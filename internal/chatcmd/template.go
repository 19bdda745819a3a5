package chatcmd

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// templateFuncs provides utility functions for notice templates.
var templateFuncs = sprig.TxtFuncMap()

// Notice templates. Data fields are those of noticeData.
const (
	tmplUsage          = `Usage: {{ .Usage }}`
	tmplUnknownCommand = `Unknown command /{{ .Command | trunc 32 }}.`
	tmplNickTaken      = `Nickname {{ .Nick }} is already in use.`
	tmplNickChanged    = `Nickname changed to {{ .Nick }}`
	tmplPlayerNotFound = `Player {{ .Target }} not found.`
	tmplPlayerOffline  = `Player {{ .Target }} is offline.`
	tmplWhisperSent    = `(whisper to {{ .Target }}) {{ .Text }}`
	tmplChannelExists  = `Channel {{ .Channel | quote }} already exists.`
	tmplChannelCreated = `Channel {{ .Channel | quote }} created.`
	tmplBadChannel     = `Channel names may only contain letters, digits, '-' and '_' (max {{ .Max }}).`
	tmplUnknownChannel = `Channel {{ .Channel | quote }} does not exist.`
)

type noticeData struct {
	Command string
	Usage   string
	Nick    string
	Target  string
	Text    string
	Channel string
	Max     int
}

// ExpandTemplate expands a template string using the provided data.
func ExpandTemplate(tmplStr string, data any) (string, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
