package dialogs

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pilyavetsb/SecretaryBot/internal/cards"
	"github.com/pilyavetsb/SecretaryBot/internal/models"
	"github.com/pilyavetsb/SecretaryBot/internal/validate"
)

// displayDateLayout is how dates appear inside autoreply texts.
const displayDateLayout = "02.01.2006"

type absence struct {
	ru      string
	en      string
	subject string
}

var absences = map[string]absence{
	cards.ReasonVacation:  {ru: "находиться в отпуске.", en: "on vacation", subject: "Отпуск"},
	cards.ReasonTravel:    {ru: "находиться в командировке.", en: "travelling on business", subject: "Командировка"},
	cards.ReasonSickleave: {ru: "находиться на больничном.", en: "on sick leave", subject: "Больничный"},
	cards.ReasonOther:     {ru: "отсутствовать на рабочем месте.", en: "absent from work", subject: "Отсутствие"},
}

type delegate struct {
	name string
	area string
}

// delegates pairs names with areas and drops the empty pairs.
func delegates(names, areas []string) []delegate {
	n := len(names)
	if len(areas) > n {
		n = len(areas)
	}
	var out []delegate
	for i := 0; i < n; i++ {
		var d delegate
		if i < len(names) {
			d.name = strings.TrimSpace(names[i])
		}
		if i < len(areas) {
			d.area = strings.TrimSpace(areas[i])
		}
		if d.name == "" && d.area == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (d delegate) label() string {
	switch {
	case d.area == "":
		return d.name
	case d.name == "":
		return d.area
	}
	return d.name + " - " + d.area
}

// replacementText names the colleagues covering for the user.
func replacementText(ds []delegate) (ru, en string) {
	switch {
	case len(ds) == 0:
		return "Буду рад ответить на ваши вопросы по возращении.",
			"I will be happy to answer all your questions on my return."
	case len(ds) == 1:
		return "По любым вопросам вы можете обратиться к этому сотруднику: " + ds[0].name + ".",
			"For any enquiries, please contact the following employee: " + ds[0].name + "."
	}

	names := make([]string, 0, len(ds))
	labels := make([]string, 0, len(ds))
	withAreas := false
	for _, d := range ds {
		if d.name != "" {
			names = append(names, d.name)
		}
		labels = append(labels, d.label())
		if d.area != "" {
			withAreas = true
		}
	}
	en = "For any enquiries, please contact the following employees: " + strings.Join(names, ", ") + "."
	if !withAreas {
		return "По любым вопросам вы можете обратиться к следующим сотрудникам: " + strings.Join(names, ", ") + ".", en
	}
	return "В мое отсутствие вы можете обратиться к следующим сотрудникам: " + strings.Join(labels, ", ") + ".", en
}

func phoneText(phone string) (ru, en string) {
	if strings.TrimSpace(phone) == "" {
		return "", ""
	}
	pretty := validate.PrettyPhone(phone)
	return "При возникновении срочных вопросов звоните " + pretty,
		"In case you have urgent matters to discuss - please call " + pretty
}

func displayDate(date string) (string, error) {
	t, err := time.Parse(validate.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("autoreply date %q: %w", date, err)
	}
	return t.Format(displayDateLayout), nil
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// paragraph builds <p>greeting<br>text</p>.
func paragraph(greeting, text string) *html.Node {
	p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: greeting})
	p.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return p
}

// composeAutoreply renders the HTML body of an autoreply in the chosen
// language or in both.
func composeAutoreply(sub cards.AutoreplySubmission) (string, error) {
	reason, ok := absences[sub.Reason]
	if !ok {
		return "", fmt.Errorf("unknown absence reason %q", sub.Reason)
	}
	start, err := displayDate(sub.StartDate)
	if err != nil {
		return "", err
	}
	end, err := displayDate(sub.EndDate)
	if err != nil {
		return "", err
	}
	replRU, replEN := replacementText(delegates(sub.Names(), sub.Areas()))
	phoneRU, phoneEN := phoneText(sub.Phone)

	ru := paragraph("Уважаемые коллеги,", joinNonEmpty(
		"Информирую вас о том, что в период с "+start+" по "+end+" я буду "+reason.ru, replRU, phoneRU))
	en := paragraph("Dear colleagues,", joinNonEmpty(
		"please be informed that from "+start+" to "+end+" I will be "+reason.en+".", replEN, phoneEN))

	root := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	root.AppendChild(body)
	switch sub.Lang() {
	case models.LanguageEN:
		body.AppendChild(en)
	case models.LanguageBoth:
		body.AppendChild(ru)
		body.AppendChild(en)
	default:
		body.AppendChild(ru)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render autoreply: %w", err)
	}
	return buf.String(), nil
}
