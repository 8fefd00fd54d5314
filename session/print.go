package session

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"lensfocus/fisheye"
)

var tierColor = map[fisheye.Tier]*color.Color{
	fisheye.Excellent:  color.New(color.FgGreen, color.Bold),
	fisheye.Good:       color.New(color.FgGreen),
	fisheye.Acceptable: color.New(color.FgYellow),
	fisheye.Poor:       color.New(color.FgRed),
}

func printResult(w io.Writer, res *fisheye.Result, dump, text string) {
	fmt.Fprintf(w, "✅ Fisheye calibration complete! Saved to %s and %s\n", dump, text)
	fmt.Fprintf(w, "📊 RMS Error: %v\n", res.RMS)
	tier := res.Quality()
	tierColor[tier].Fprintln(w, tier.Message())
}

func printFailure(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "❌ Calibration error: %v\n", err)
	fmt.Fprintln(w, "Tips for fisheye calibration:")
	fmt.Fprintln(w, "- Use more images (10-20 is recommended)")
	fmt.Fprintln(w, "- Ensure the checkerboard fills different parts of the frame")
	fmt.Fprintln(w, "- Hold the checkerboard at different angles")
	fmt.Fprintln(w, "- Avoid having the checkerboard at the extreme edges of the fisheye view")
}
