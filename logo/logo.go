package logo

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Display prints the HappyTime banner centered in the terminal.
func Display() {
	s, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Happy", pterm.FgLightYellow.ToStyle()),
		putils.LettersFromStringWithStyle("Time", pterm.FgLightMagenta.ToStyle())).Srender()
	pterm.DefaultCenter.Println(s)
	pterm.DefaultCenter.WithCenterEachLineSeparately().
		Println("Clock in, clock out\nand never miss the evening punch.")
}
