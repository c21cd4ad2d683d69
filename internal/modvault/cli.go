package modvault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/schollz/progressbar/v3"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: modvault <command> [arguments]")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"import, i", "[-f] [-root <dir>] <archive.zip>...", "Import mod archive(s) into the library"},
		{"list, ls", "[-digest]", "List installed packages"},
		{"conflicts", "<archive.zip>", "Show ownership conflicts an import would cause"},
		{"rename, mv", "<old> <new>", "Rename an installed package"},
		{"record", "<pkg>", "Record an installed package's files in the ledger"},
		{"remove, r", "<pkg>", "Remove an installed package and its ledger entry"},
		{"manifest, m", "[pkg]", "Show the ownership ledger, or one package's files"},
		{"clear", "", "Reset the ownership ledger"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// barReporter bridges extraction progress onto a terminal progress bar.
type barReporter struct {
	bar *progressbar.ProgressBar
}

func newBarReporter() *barReporter {
	return &barReporter{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetDescription("importing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
				BarStart: "[", BarEnd: "]",
			}),
		),
	}
}

func (r *barReporter) Report(percent int, message string) {
	if message != "" {
		r.bar.Describe(message)
	}
	_ = r.bar.Set(percent)
}

func (r *barReporter) finish() {
	_ = r.bar.Finish()
	fmt.Println()
}

// Main is the CLI entrypoint for cmd/modvault.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling import gracefully\n", sig)
			cancel()

			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Printf("Second interrupt received. Forcing immediate exit.\n")
				os.Exit(130)
			case <-time.After(2 * time.Second):
				colArrow.Print("\n-> ")
				color.Danger.Printf("Graceful shutdown timeout. Exiting.\n")
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if root := os.Getenv("MODVAULT_CONFIG"); root != "" {
		configPath = root
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config %s: %v\n", configPath, err)
		cfg = &Config{Values: map[string]string{}}
		mergeEnvOverrides(cfg)
	}
	initConfig(cfg)

	var exitCode int

	switch os.Args[1] {
	case "version", "--version":
		colSuccess.Printf("modvault %s (built %s)\n", version, buildDate)

	case "import", "i":
		exitCode = cmdImport(ctx, os.Args[2:])

	case "list", "ls":
		exitCode = cmdList(os.Args[2:])

	case "conflicts":
		if len(os.Args) < 3 {
			colError.Println("Usage: modvault conflicts <archive.zip>")
			exitCode = 1
			break
		}
		exitCode = cmdConflicts(os.Args[2])

	case "rename", "mv":
		if len(os.Args) < 4 {
			colError.Println("Usage: modvault rename <old> <new>")
			exitCode = 1
			break
		}
		exitCode = cmdRename(os.Args[2], os.Args[3])

	case "record":
		if len(os.Args) < 3 {
			colError.Println("Usage: modvault record <pkg>")
			exitCode = 1
			break
		}
		exitCode = cmdRecord(os.Args[2])

	case "remove", "r":
		if len(os.Args) < 3 {
			colError.Println("Usage: modvault remove <pkg>")
			exitCode = 1
			break
		}
		exitCode = cmdRemove(os.Args[2])

	case "manifest", "m":
		pkg := ""
		if len(os.Args) >= 3 {
			pkg = os.Args[2]
		}
		exitCode = cmdManifest(pkg)

	case "clear":
		if askForConfirmation(colWarn, "Reset the ownership ledger for %s?", destRoot) {
			m := LoadManifest(destRoot)
			if !m.Clear() {
				colError.Println("Failed to reset the ledger.")
				exitCode = 1
			} else {
				colSuccess.Println("Ledger reset.")
			}
		}

	case "help", "-h", "--help":
		printHelp()

	default:
		colError.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		exitCode = 1
	}

	cancel()
	os.Exit(exitCode)
}

func cmdImport(ctx context.Context, args []string) int {
	overwrite := false
	root := destRoot
	var archives []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--force":
			overwrite = true
		case "-root":
			if i+1 >= len(args) {
				colError.Println("-root requires a directory argument")
				return 1
			}
			i++
			root = args[i]
		default:
			archives = append(archives, args[i])
		}
	}
	if len(archives) == 0 {
		colError.Println("Usage: modvault import [-f] [-root <dir>] <archive.zip>...")
		return 1
	}

	lock, err := acquireImportLock(root)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	defer lock.release()

	lib := NewLibrary(root)
	manifest := LoadManifest(root)

	for _, archive := range archives {
		if err := importOne(ctx, archive, root, overwrite, manifest, lib); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrPasswordCancelled) {
				colWarn.Printf("Import cancelled: %s\n", filepath.Base(archive))
				return 130
			}
			colError.Printf("Error: %v\n", err)
			return 1
		}
	}
	return 0
}

func importOne(ctx context.Context, archive, root string, overwrite bool, manifest *Manifest, lib *Library) error {
	colArrow.Print("-> ")
	colInfo.Printf("Importing %s\n", filepath.Base(archive))

	bar := newBarReporter()
	opts := ImportOptions{
		Overwrite: overwrite,
		Progress:  bar,
		Password:  terminalPasswordProvider{},
	}

	target, err := ImportArchive(ctx, archive, root, opts)
	if errors.Is(err, ErrAlreadyExists) && !overwrite {
		bar.finish()
		if !askForConfirmation(colWarn, "Package %s already exists. Overwrite?", strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))) {
			return fmt.Errorf("import aborted: %w", err)
		}
		bar = newBarReporter()
		opts.Progress = bar
		opts.Overwrite = true
		target, err = ImportArchive(ctx, archive, root, opts)
	}
	bar.finish()
	if err != nil {
		return err
	}
	lib.Invalidate()

	pkg := filepath.Base(target)
	files, err := listPackageFiles(target)
	if err != nil {
		return fmt.Errorf("failed to list package files for %s: %w", pkg, err)
	}

	if conflicts := manifest.CheckConflicts(pkg, files); len(conflicts) > 0 {
		colWarn.Printf("%d file(s) change ownership:\n", len(conflicts))
		for i, c := range conflicts {
			if i == 10 {
				colWarn.Printf("  ... and %d more\n", len(conflicts)-10)
				break
			}
			colWarn.Printf("  %s\n", c)
		}
	}
	if !manifest.RecordInstallation(pkg, files) {
		colWarn.Println("Warning: package installed but the ownership ledger could not be saved.")
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Imported %s (%d files)\n", pkg, len(files))
	return nil
}

func cmdList(args []string) int {
	withDigest := false
	for _, a := range args {
		if a == "-digest" {
			withDigest = true
		}
	}

	lib := NewLibrary(destRoot)
	pkgs, err := lib.Scan(false, withDigest)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	if len(pkgs) == 0 {
		colInfo.Printf("No packages installed under %s\n", destRoot)
		return 0
	}

	manifest := LoadManifest(destRoot)
	for _, p := range pkgs {
		recorded := ""
		if _, ok := manifest.Package(p.Name); ok {
			recorded = " [recorded]"
		}
		colSuccess.Printf("%-30s", p.Name)
		colInfo.Printf(" %6d files  %8.1f MB%s\n", p.FileCount, float64(p.SizeBytes)/(1024*1024), recorded)
		if withDigest {
			colNote.Printf("  %s\n", p.Digest)
		}
	}
	return 0
}

// cmdConflicts dry-runs an archive's ownership impact: the archive is
// extracted to a throwaway staging area, checked against the ledger, and
// discarded.
func cmdConflicts(archive string) int {
	tmp, err := os.MkdirTemp("", "modvault-conflicts-*")
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	defer os.RemoveAll(tmp)

	target, err := ImportArchive(context.Background(), archive, tmp, ImportOptions{
		Password: terminalPasswordProvider{},
	})
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}

	pkg := filepath.Base(target)
	files, err := listPackageFiles(target)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}

	manifest := LoadManifest(destRoot)
	conflicts := manifest.CheckConflicts(pkg, files)
	if len(conflicts) == 0 {
		colSuccess.Printf("No conflicts: %s claims %d file(s), none owned elsewhere.\n", pkg, len(files))
		return 0
	}
	colWarn.Printf("%d conflict(s):\n", len(conflicts))
	for _, c := range conflicts {
		colWarn.Printf("  %s\n", c)
	}
	return 0
}

func cmdRename(oldName, newName string) int {
	lock, err := acquireImportLock(destRoot)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	defer lock.release()

	if err := RenamePackage(destRoot, oldName, newName); err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	manifest := LoadManifest(destRoot)
	if !manifest.RenamePackageRecord(oldName, newName) {
		colWarn.Println("Warning: package renamed but the ownership ledger could not be saved.")
	}
	colSuccess.Printf("Renamed %s -> %s\n", oldName, newName)
	return 0
}

func cmdRecord(pkg string) int {
	pkgDir := filepath.Join(destRoot, pkg)
	if info, err := os.Stat(pkgDir); err != nil || !info.IsDir() {
		colError.Printf("Package not installed: %s\n", pkg)
		return 1
	}
	files, err := listPackageFiles(pkgDir)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	manifest := LoadManifest(destRoot)
	if !manifest.RecordInstallation(pkg, files) {
		colError.Println("Failed to save the ownership ledger.")
		return 1
	}
	colSuccess.Printf("Recorded %s (%d files)\n", pkg, len(files))
	return 0
}

func cmdRemove(pkg string) int {
	pkgDir := filepath.Join(destRoot, pkg)
	if info, err := os.Stat(pkgDir); err != nil || !info.IsDir() {
		colError.Printf("Package not installed: %s\n", pkg)
		return 1
	}
	if !askForConfirmation(colWarn, "Remove package %s?", pkg) {
		return 0
	}
	if err := os.RemoveAll(pkgDir); err != nil {
		colError.Printf("Error: %v\n", err)
		return 1
	}
	manifest := LoadManifest(destRoot)
	if !manifest.RemovePackageRecord(pkg) {
		colWarn.Println("Warning: package removed but the ownership ledger could not be saved.")
	}
	colSuccess.Printf("Removed %s\n", pkg)
	return 0
}

func cmdManifest(pkg string) int {
	manifest := LoadManifest(destRoot)

	if pkg != "" {
		mod, ok := manifest.Package(pkg)
		if !ok {
			colError.Printf("No ledger entry for %s\n", pkg)
			return 1
		}
		colInfo.Printf("%s: %d file(s), recorded %s\n", pkg, len(mod.Files), mod.InstallTime.Format(time.RFC3339))
		for _, f := range mod.Files {
			owner, _ := manifest.Owner(f)
			if owner == pkg {
				fmt.Printf("  %s\n", f)
			} else {
				colWarn.Printf("  %s (now owned by %s)\n", f, owner)
			}
		}
		return 0
	}

	names := manifest.Packages()
	if len(names) == 0 {
		colInfo.Println("The ownership ledger is empty.")
		return 0
	}
	for _, name := range names {
		mod, _ := manifest.Package(name)
		colSuccess.Printf("%-30s", name)
		colInfo.Printf(" %6d files  recorded %s\n", len(mod.Files), mod.InstallTime.Format("2006-01-02 15:04"))
	}
	return 0
}
