package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
)

type paperBuilds struct {
	Builds []struct {
		Build     int `json:"build"`
		Downloads map[string]struct {
			Name string `json:"name"`
		} `json:"downloads"`
	} `json:"builds"`
}

type fabricLoader struct {
	Loader struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	} `json:"loader"`
}

type fabricInstaller struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

// InstallerRunner runs a Forge or NeoForge installer jar with --installServer inside dir.
type InstallerRunner func(ctx context.Context, javaHome, dir, jar string) error

// Installer sets up a fresh server folder.
type Installer struct {
	client *Client
	java   minecraft.JavaResolver
	runJar InstallerRunner
	log    *logging.Logger
}

// NewInstaller creates an Installer. java picks the runtime for Forge and NeoForge installers.
func NewInstaller(client *Client, java minecraft.JavaResolver, log *logging.Logger) *Installer {
	if log == nil {
		log = logging.Nop()
	}
	return &Installer{client: client, java: java, runJar: runInstallerJar, log: log}
}

// Install downloads the server software for typ and version into dir and accepts the EULA.
func (in *Installer) Install(ctx context.Context, typ model.ServerType, version, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	log := in.log.With("type", string(typ)).With("version", version)
	log.Info("server_install_start", "dir", dir)

	var err error
	switch typ {
	case model.ServerTypeVanilla:
		err = in.installVanilla(ctx, version, dir)
	case model.ServerTypeSpigot:
		err = in.client.download(ctx, fmt.Sprintf("%s/spigot-%s.jar", in.client.endpoints.Spigot, version), filepath.Join(dir, minecraft.ServerJar))
	case model.ServerTypePaper:
		err = in.installPaper(ctx, version, dir)
	case model.ServerTypeFabric:
		err = in.installFabric(ctx, version, dir)
	case model.ServerTypeForge:
		err = in.installForge(ctx, version, dir)
	case model.ServerTypeNeoForge:
		err = in.installNeoForge(ctx, version, dir)
	default:
		err = fmt.Errorf("unknown server type %q", typ)
	}
	if err != nil {
		log.Error("server_install_failed", "error", err)
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "eula.txt"), []byte("eula=true\n"), 0o644); err != nil {
		return err
	}
	log.Info("server_install_success")
	return nil
}

func (in *Installer) installVanilla(ctx context.Context, version, dir string) error {
	url, err := in.client.mojangServerURL(ctx, version)
	if err != nil {
		return err
	}
	return in.client.download(ctx, url, filepath.Join(dir, minecraft.ServerJar))
}

func (in *Installer) installPaper(ctx context.Context, version, dir string) error {
	var b paperBuilds
	base := fmt.Sprintf("%s/versions/%s/builds", in.client.endpoints.PaperProject, version)
	if err := in.client.getJSON(ctx, base, &b); err != nil {
		return err
	}
	if len(b.Builds) == 0 {
		return fmt.Errorf("paper has no builds for %s", version)
	}
	latest := b.Builds[len(b.Builds)-1]
	name := latest.Downloads["application"].Name
	if name == "" {
		name = fmt.Sprintf("paper-%s-%d.jar", version, latest.Build)
	}
	url := fmt.Sprintf("%s/%d/downloads/%s", base, latest.Build, name)
	return in.client.download(ctx, url, filepath.Join(dir, minecraft.ServerJar))
}

func (in *Installer) installFabric(ctx context.Context, version, dir string) error {
	var loaders []fabricLoader
	if err := in.client.getJSON(ctx, in.client.endpoints.FabricMeta+"/versions/loader/"+version, &loaders); err != nil {
		return err
	}
	loader := ""
	for _, l := range loaders {
		if l.Loader.Stable {
			loader = l.Loader.Version
			break
		}
	}
	if loader == "" && len(loaders) > 0 {
		loader = loaders[0].Loader.Version
	}
	if loader == "" {
		return fmt.Errorf("fabric has no loader for %s", version)
	}

	var installers []fabricInstaller
	if err := in.client.getJSON(ctx, in.client.endpoints.FabricMeta+"/versions/installer", &installers); err != nil {
		return err
	}
	installer := ""
	for _, i := range installers {
		if i.Stable {
			installer = i.Version
			break
		}
	}
	if installer == "" {
		return errors.New("fabric has no stable installer")
	}

	url := fmt.Sprintf("%s/versions/loader/%s/%s/%s/server/jar", in.client.endpoints.FabricMeta, version, loader, installer)
	return in.client.download(ctx, url, filepath.Join(dir, minecraft.ServerJar))
}

func (in *Installer) installForge(ctx context.Context, version, dir string) error {
	promos, err := in.client.forgePromotions(ctx)
	if err != nil {
		return err
	}
	forge := promos[version+"-recommended"]
	if forge == "" {
		forge = promos[version+"-latest"]
	}
	if forge == "" {
		return fmt.Errorf("forge has no build for %s", version)
	}
	full := version + "-" + forge
	url := fmt.Sprintf("%s/%s/forge-%s-installer.jar", in.client.endpoints.ForgeMaven, full, full)
	return in.runInstaller(ctx, version, dir, url, "forge-")
}

func (in *Installer) installNeoForge(ctx context.Context, version, dir string) error {
	all, err := in.client.neoForgeVersions(ctx)
	if err != nil {
		return err
	}
	neo, ok := latestNeoForge(all, version)
	if !ok {
		return fmt.Errorf("neoforge has no build for %s", version)
	}
	url := fmt.Sprintf("%s/%s/neoforge-%s-installer.jar", in.client.endpoints.NeoForgeMaven, neo, neo)
	return in.runInstaller(ctx, version, dir, url, "neoforge-")
}

func (in *Installer) runInstaller(ctx context.Context, gameVersion, dir, url, jarPrefix string) error {
	jar := filepath.Join(dir, "installer.jar")
	if err := in.client.download(ctx, url, jar); err != nil {
		return err
	}
	home, err := in.java.JavaHome(ctx, gameVersion)
	if err != nil {
		return err
	}
	if err := in.runJar(ctx, home, dir, jar); err != nil {
		return fmt.Errorf("run installer: %w", err)
	}
	os.Remove(jar)
	os.Remove(jar + ".log")

	if _, err := os.Stat(filepath.Join(dir, "run.sh")); err == nil {
		return nil
	}
	// Older installers leave a universal jar instead of run.sh.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, jarPrefix) && strings.HasSuffix(name, ".jar") && !strings.Contains(name, "installer") {
			return os.Rename(filepath.Join(dir, name), filepath.Join(dir, minecraft.ServerJar))
		}
	}
	return errors.New("installer produced neither run.sh nor a server jar")
}

func runInstallerJar(ctx context.Context, javaHome, dir, jar string) error {
	java := "java"
	if javaHome != "" {
		java = filepath.Join(javaHome, "bin", "java")
	}
	cmd := exec.CommandContext(ctx, java, "-jar", filepath.Base(jar), "--installServer")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(out)
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(tail))
	}
	return nil
}
