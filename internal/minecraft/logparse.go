package minecraft

import (
	"regexp"
	"strconv"
	"strings"
)

const serverThreadInfo = "Server thread/INFO"

var (
	ansiPattern        = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	ipv4Pattern        = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	playerLoginPattern = regexp.MustCompile(`\S*\[/(?:\d{1,3}\.){3}\d{1,3}:.{5}\]`)
	joinPattern        = regexp.MustCompile(`^(\S+) joined the game`)
	leavePattern       = regexp.MustCompile(`^(\S+) left the game`)
	advancementPattern = regexp.MustCompile(`^(\S+) has (?:made the advancement|completed the challenge|reached the goal) \[(.+)\]`)
)

// CleanLine strips ANSI escapes, carriage returns and surrounding whitespace.
func CleanLine(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// Tags returns the leading bracketed tags of a log line:
// "[12:00:00] [Server thread/INFO]: Done" yields ["12:00:00", "Server thread/INFO"].
func Tags(line string) []string {
	var tags []string
	for {
		line = strings.TrimLeft(line, " ")
		if !strings.HasPrefix(line, "[") {
			return tags
		}
		end := strings.IndexByte(line, ']')
		if end < 0 {
			return tags
		}
		tags = append(tags, line[1:end])
		line = line[end+1:]
	}
}

// Message returns the text after the leading tags and their ": " separator.
// Lines without tags are returned unchanged.
func Message(line string) string {
	rest := line
	sawTag := false
	for {
		rest = strings.TrimLeft(rest, " ")
		if !strings.HasPrefix(rest, "[") {
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return line
		}
		sawTag = true
		rest = rest[end+1:]
	}
	if !sawTag {
		return line
	}
	if strings.HasPrefix(rest, ":") {
		return strings.TrimPrefix(strings.TrimPrefix(rest, ":"), " ")
	}
	return line
}

func hasTag(line, tag string) bool {
	for _, t := range Tags(line) {
		if t == tag {
			return true
		}
	}
	return false
}

// IsDoneLine reports whether the line announces that startup finished.
func IsDoneLine(line string) bool {
	return strings.Contains(line, "["+serverThreadInfo+"]") && strings.Contains(line, "Done")
}

// PlayerJoined returns the player name for "<name> joined the game".
func PlayerJoined(msg string) (string, bool) {
	m := joinPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PlayerLeft returns the player name for "<name> left the game".
func PlayerLeft(msg string) (string, bool) {
	m := leavePattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Advancement returns the player and advancement title of an advancement announcement.
func Advancement(msg string) (player, title string, ok bool) {
	m := advancementPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// MaskPlayerIP hides IPv4 addresses on the login line "<name>[/1.2.3.4:5678] logged in ...".
// Other lines are returned unchanged.
func MaskPlayerIP(line string) string {
	if len(playerLoginPattern.FindAllString(line, -1)) != 1 {
		return line
	}
	return ipv4Pattern.ReplaceAllStringFunc(line, func(ip string) string {
		for _, part := range strings.Split(ip, ".") {
			n, err := strconv.Atoi(part)
			if err != nil || n > 255 {
				return ip
			}
		}
		return "***.***.***.***"
	})
}
