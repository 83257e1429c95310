package export

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// GenerateEDL renders clips back to back on the record side.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 70))}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, clip := range clips {
		startMs := secondsToMs(clip.Start)
		endMs := secondsToMs(clip.End)
		durationMs := endMs - startMs

		srcIn := msToTimecode(startMs, fps)
		srcOut := msToTimecode(endMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
		)
		if clip.MediaPath != "" {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath))
		}

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL writes an EDL into dir, which must already exist, and returns
// the file path. Earlier exports with the same name are kept.
func WriteEDL(dir, projectName, content string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	f, err := createUnique(dir, FileName(projectName, ".edl"))
	if err != nil {
		return "", fmt.Errorf("create edl: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write edl: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return f.Name(), nil
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
