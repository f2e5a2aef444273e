package activation

import (
	"fmt"
	"strings"
)

// Script accumulates shell statements for one shell kind.
type Script struct {
	shell ShellKind
	b     strings.Builder
}

func NewScript(shell ShellKind) *Script {
	return &Script{shell: shell}
}

func (s *Script) SetEnv(key, value string) *Script {
	switch s.shell {
	case ShellCmdExe:
		fmt.Fprintf(&s.b, "@SET \"%s=%s\"\n", key, value)
	default:
		fmt.Fprintf(&s.b, "export %s=\"%s\"\n", key, escapePosix(value))
	}
	return s
}

func (s *Script) UnsetEnv(key string) *Script {
	switch s.shell {
	case ShellCmdExe:
		fmt.Fprintf(&s.b, "@SET %s=\n", key)
	default:
		fmt.Fprintf(&s.b, "unset %s\n", key)
	}
	return s
}

// Source runs another script in the current shell so its environment changes persist.
func (s *Script) Source(path string) *Script {
	switch s.shell {
	case ShellCmdExe:
		fmt.Fprintf(&s.b, "@CALL \"%s\"\n", path)
	default:
		fmt.Fprintf(&s.b, ". \"%s\"\n", escapePosix(path))
	}
	return s
}

func (s *Script) AppendLine(line string) *Script {
	s.b.WriteString(line)
	s.b.WriteString("\n")
	return s
}

func (s *Script) String() string {
	return s.b.String()
}

func escapePosix(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(value)
}
