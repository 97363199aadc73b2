package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/model"
)

const helpText = "enter next • alt+enter newline • tab next • ctrl+s save • ctrl+n/p select line • ctrl+e edit • ctrl+x remove • esc cancel • ctrl+g schedule • ctrl+t save tickets • ctrl+c quit"

func (m *Model) View() string {
	snap := m.session.Snapshot()

	var b strings.Builder
	title := "New contract"
	if snap.Draft.ContractID != "" {
		title = "Contract " + snap.Draft.ContractID
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	section := ""
	for _, control := range m.graph.Controls() {
		if !m.session.IsMounted(control.ID) {
			continue
		}
		if control.Section != section {
			section = control.Section
			b.WriteString(sectionStyle.Render(strings.ToUpper(section)))
			b.WriteString("\n")
			if section == "pests" {
				b.WriteString(m.viewLines(snap))
			}
		}
		b.WriteString(m.viewControl(snap, control))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	submit := buttonStyle
	if m.focused == builder.ControlSubmit {
		submit = focusedButtonStyle
	}
	b.WriteString(submit.Render(label(builder.ControlSubmit)))
	b.WriteString("\n")

	if len(snap.Tickets) > 0 {
		b.WriteString(statusStyle.Render(fmt.Sprintf("%d tickets, first %s %s",
			len(snap.Tickets), snap.Tickets[0].TicketDate, snap.Tickets[0].TicketDay)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Width(m.width).Render(helpText))
	return b.String()
}

func (m *Model) viewControl(snap builder.Snapshot, control builder.Control) string {
	focused := control.ID == m.focused

	if control.Kind == builder.KindButton && control.ID != builder.ControlAttachment {
		style := buttonStyle
		if focused {
			style = focusedButtonStyle
		}
		return labelStyle.Render("") + style.Render(label(control.ID))
	}

	name := labelStyle.Render(label(control.ID))
	if !focused {
		return name + valueOf(snap, control.ID)
	}
	name = focusedLabelStyle.Render(label(control.ID))

	if control.Kind == builder.KindMultiline {
		return lipgloss.JoinHorizontal(lipgloss.Top, name, m.area.View())
	}
	line := name + m.input.View()
	if control.Kind == builder.KindCombobox && m.listOpen {
		line += "\n" + m.viewOptions()
	}
	return line
}

func (m *Model) viewOptions() string {
	if len(m.options) == 0 {
		return optionStyle.Render("(no match)")
	}
	rows := make([]string, 0, len(m.options))
	for i, option := range m.options {
		if i == m.optionIdx {
			rows = append(rows, selectedOptionStyle.Render("> "+option.Name))
			continue
		}
		rows = append(rows, optionStyle.Render("  "+option.Name))
	}
	return strings.Join(rows, "\n")
}

func (m *Model) viewLines(snap builder.Snapshot) string {
	if len(snap.Items) == 0 {
		return lineStyle.Render(helpStyle.Render("no pest lines yet")) + "\n"
	}
	var b strings.Builder
	for i, item := range snap.Items {
		marker := " "
		if item.Key == snap.Buffer.EditingKey {
			marker = "*"
		}
		row := fmt.Sprintf("%s %-16s %-12s %-14s %6s x %-8s = %s",
			marker, item.Pest.Text, item.Frequency.Text, chemical(item), item.Count, item.Value, item.Total)
		style := lineStyle
		if i == m.lineCursor {
			style = selectedLineStyle
		}
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

func chemical(item model.PestLineItem) string {
	if item.Chemical.IsEmpty() {
		return "-"
	}
	return item.Chemical.Text
}
