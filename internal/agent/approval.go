package agent

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/mweinbach/agent-coworker-sub008/internal/exec"
)

// destructiveVerbs are shell-command tokens that mutate or delete state
// outside of reading it. Grounded on the teacher's approval-policy denylist
// defaults, narrowed to one dangerous-classification rule: destructive
// verbs, network mutations, or paths outside workspace roots.
var destructiveVerbs = []string{
	"rm", "rmdir", "mv", "dd", "mkfs", "shred", "truncate",
	"chmod", "chown", "chgrp",
	"kill", "killall", "pkill",
	"shutdown", "reboot", "halt",
	"drop", "delete", "truncate table",
}

var networkMutationVerbs = []string{
	"curl", "wget", "nc", "ncat", "ssh", "scp", "rsync", "sftp",
}

// shellCommandIsDangerous classifies a shell command per spec §4.5 step 3:
// "shell command that touches destructive verbs, network mutations, or
// paths outside workspace roots".
func shellCommandIsDangerous(command, workspaceRoot string) bool {
	command = strings.TrimSpace(command)
	if command == "" {
		return false
	}
	lower := strings.ToLower(command)
	for _, verb := range destructiveVerbs {
		if containsWord(lower, verb) {
			return true
		}
	}
	for _, verb := range networkMutationVerbs {
		if containsWord(lower, verb) {
			return true
		}
	}
	if workspaceRoot != "" && referencesPathOutsideRoot(command, workspaceRoot) {
		return true
	}
	// Shell metacharacters (pipes, chaining, substitution) and embedded
	// control characters hide a second command inside a command string the
	// verb scan above never sees.
	if exec.ShellMetachars.MatchString(command) || exec.ControlChars.MatchString(command) {
		return true
	}
	return false
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx != -1 {
		before := idx == 0 || !isWordChar(haystack[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(haystack) || !isWordChar(haystack[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next == -1 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// referencesPathOutsideRoot looks for absolute paths or `..` traversal
// tokens in command that resolve outside workspaceRoot.
func referencesPathOutsideRoot(command, workspaceRoot string) bool {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return false
	}
	for _, token := range strings.Fields(command) {
		token = strings.Trim(token, `"'`)
		if token == "" {
			continue
		}
		if !strings.HasPrefix(token, "/") && !strings.Contains(token, "..") {
			continue
		}
		candidate := token
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		candidate = filepath.Clean(candidate)
		if !strings.HasPrefix(candidate, root) {
			return true
		}
	}
	return false
}

// bashCommandInput is the shape bash-like tool inputs take, used only to
// extract the command for classification; unknown tool shapes are never
// classified dangerous by this path (descriptor-declared RequiresApproval
// still applies to them).
type bashCommandInput struct {
	Command string `json:"command"`
}

// classifyDangerous inspects a tool call's input for the shell-command shape
// and applies shellCommandIsDangerous; non-shell tools are never classified
// dangerous here.
func classifyDangerous(toolName string, input json.RawMessage, workspaceRoot string) (command string, dangerous bool) {
	if !isShellLikeTool(toolName) {
		return "", false
	}
	var parsed bashCommandInput
	if err := json.Unmarshal(input, &parsed); err != nil {
		return "", false
	}
	return parsed.Command, shellCommandIsDangerous(parsed.Command, workspaceRoot)
}

func isShellLikeTool(name string) bool {
	switch name {
	case "bash", "exec", "shell", "run_command":
		return true
	default:
		return false
	}
}
