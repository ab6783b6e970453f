package presentation

// TextStyle is a supplemental convenience bundling the font/color pair a
// caller would otherwise have to set on every CommandDrawText individually.
// It carries no new wire behavior; Apply only fills fields the command left
// at zero. Defaults mirror the original implementation's header/body
// styles (original_source/dis_client/dis_display.py's per-layout font/color
// profile table).
type TextStyle struct {
	Font  byte
	Color byte
}

var (
	// TextStyleHeader matches the original's big-centered-white header rows.
	TextStyleHeader = TextStyle{Font: 0x20, Color: 0x07}
	// TextStyleBody matches the original's small-left-white item rows.
	TextStyleBody = TextStyle{Font: 0x08, Color: 0x07}
)

// Apply fills Font/Color on cmd from the style when the command left them
// at their zero value.
func (t TextStyle) Apply(cmd Command) Command {
	if cmd.Font == 0 {
		cmd.Font = t.Font
	}
	if cmd.Color == 0 {
		cmd.Color = t.Color
	}
	return cmd
}
