package minecraft

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"protonmc/internal/model"
)

// JavaResolver returns the JAVA_HOME to run a game version with.
// An empty home means "use java from PATH".
type JavaResolver interface {
	JavaHome(ctx context.Context, gameVersion string) (string, error)
}

// LaunchOptions are the JVM settings shared by every server.
type LaunchOptions struct {
	MinRAM string
	MaxRAM string
}

// NewCommandBuilder launches run.sh when the installer produced one and
// "java -jar server.jar" otherwise.
func NewCommandBuilder(java JavaResolver, opts LaunchOptions) CommandBuilder {
	return func(ctx context.Context, srv model.Server) (*exec.Cmd, error) {
		home, err := java.JavaHome(ctx, srv.GameVersion)
		if err != nil {
			return nil, fmt.Errorf("resolve java for %s: %w", srv.GameVersion, err)
		}

		env := os.Environ()
		javaBin := "java"
		if home != "" {
			javaBin = filepath.Join(home, "bin", "java")
			env = withEnv(env, "JAVA_HOME", home)
			env = withEnv(env, "PATH", filepath.Join(home, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))
		}

		var cmd *exec.Cmd
		if _, err := os.Stat(filepath.Join(srv.Directory, "run.sh")); err == nil {
			cmd = exec.Command("sh", "run.sh", "nogui")
		} else {
			if _, err := os.Stat(filepath.Join(srv.Directory, ServerJar)); err != nil {
				return nil, fmt.Errorf("no run.sh or %s in %s", ServerJar, srv.Directory)
			}
			args := []string{}
			if opts.MinRAM != "" {
				args = append(args, "-Xms"+opts.MinRAM)
			}
			if opts.MaxRAM != "" {
				args = append(args, "-Xmx"+opts.MaxRAM)
			}
			args = append(args, "-jar", ServerJar, "nogui")
			cmd = exec.Command(javaBin, args...)
		}
		cmd.Dir = srv.Directory
		cmd.Env = env
		return cmd, nil
	}
}

// ServerJar is the launcher jar name installers write into the server folder.
const ServerJar = "server.jar"

func withEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := env[:0:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+value)
}
