package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"rpgm-intl/internal/cache"
	"rpgm-intl/internal/compiler"
	"rpgm-intl/internal/config"
	"rpgm-intl/internal/escape"
	"rpgm-intl/internal/filewalker"
	"rpgm-intl/internal/graph"
	"rpgm-intl/internal/parser"
	"rpgm-intl/internal/status"
	"rpgm-intl/internal/textutil"
	"rpgm-intl/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// logLevelFlag overrides LOG_LEVEL when set.
var logLevelFlag string

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "rpgm-intl",
		Short:        "Parse and compile RPG Maker dialogue scripts for translation",
		Long:         "Turns an extracted dialogue script into an editable draft document and compiles translated drafts back into the game's script format.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(exportDraftCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(lintCmd())
	rootCmd.AddCommand(compileDirCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(glossaryCmd())

	return rootCmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <script.txt>",
		Short: "Parse a raw dialogue script into a draft document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return runParse(args[0], output)
		},
	}
	cmd.Flags().StringP("output", "o", "draft.json", "Output path for the draft")
	return cmd
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <script.txt|draft.json>",
		Short: "Load a script or draft and store it as the current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(args[0])
		},
	}
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [draft.json]",
		Short: "Compile the stored project (or a draft file) into the game script format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			label, _ := cmd.Flags().GetString("label")
			return runCompile(optionalArg(args), output, label)
		},
	}
	cmd.Flags().StringP("output", "o", "intl.txt", "Output path for the compiled script")
	cmd.Flags().String("label", "", "Label written in the header; defaults to HEADER_LABEL")
	return cmd
}

func exportDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-draft",
		Short: "Write the stored project to a draft file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return runExportDraft(output)
		},
	}
	cmd.Flags().StringP("output", "o", "draft.json", "Output path for the draft")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the stored project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete()
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [file]",
		Short: "Show translation progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(optionalArg(args))
		},
	}
}

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file]",
		Short: "Report translations that drop escape codes of the original line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(optionalArg(args))
		},
	}
}

func compileDirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile-dir <input-dir> <output-dir>",
		Short: "Compile every script and draft under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, _ := cmd.Flags().GetString("label")
			return runCompileDir(args[0], args[1], label)
		},
	}
	cmd.Flags().String("label", "", "Label written in the header; defaults to the file name")
	return cmd
}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Translation memory backed by PostgreSQL",
	}

	learn := &cobra.Command{
		Use:   "learn [file]",
		Short: "Remember the translated lines of the project (or a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryLearn(optionalArg(args))
		},
	}

	apply := &cobra.Command{
		Use:   "apply [file]",
		Short: "Fill untranslated lines from memory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return runMemoryApply(optionalArg(args), output)
		},
	}
	apply.Flags().StringP("output", "o", "", "Write the result to a draft file instead of the store")

	cmd.AddCommand(learn, apply)
	return cmd
}

func glossaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Speaker name glossary backed by Neo4j",
	}

	syncCmd := &cobra.Command{
		Use:   "sync [file]",
		Short: "Push speakers and their translated names to the glossary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGlossarySync(optionalArg(args))
		},
	}

	apply := &cobra.Command{
		Use:   "apply [file]",
		Short: "Fill untranslated speaker names from the glossary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return runGlossaryApply(optionalArg(args), output)
		},
	}
	apply.Flags().StringP("output", "o", "", "Write the result to a draft file instead of the store")

	cmd.AddCommand(syncCmd, apply)
	return cmd
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// loadConfig reads configuration and applies the log level, preferring --log-level.
func loadConfig() *config.Config {
	cfg := config.Load()

	level := logLevelFlag
	if level == "" {
		level = cfg.LogLevel
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg
}

// runParse handles the `parse` command.
func runParse(scriptPath, output string) error {
	cfg := loadConfig()
	sh := newShell(cfg)

	sh.status.Set(status.Loading)
	doc, err := filewalker.ScriptLoader{}.Load(scriptPath)
	if err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("parse %s: %w", scriptPath, err)
	}
	warnDuplicates(doc)

	if err := sh.writeDraft(doc, output); err != nil {
		return err
	}

	st := doc.Stats()
	log.Info().
		Str("input", scriptPath).
		Str("output", output).
		Int("sections", st.Sections).
		Int("lines", st.Lines).
		Msg("Script parsed")
	return nil
}

// runLoad handles the `load` command.
func runLoad(path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)

	sh.status.Set(status.Loading)
	doc, err := sh.walker.Load(path)
	if err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("load %s: %w", path, err)
	}
	warnDuplicates(doc)

	if err := sh.openStore(ctx); err != nil {
		return err
	}
	defer sh.close()

	return sh.putDocument(ctx, doc)
}

// runCompile handles the `compile` command.
func runCompile(path, output, label string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	if label == "" {
		label = cfg.HeaderLabel
	}

	sh.status.Set(status.Compiling)
	lines := compiler.Compile(doc, label)
	if err := os.WriteFile(output, []byte(compiler.Join(lines)), 0644); err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("write compiled script: %w", err)
	}
	sh.status.Set(status.Saved)

	log.Info().
		Str("output", output).
		Str("label", label).
		Int("lines", len(lines)).
		Msg("Compiled script written")
	return nil
}

// runExportDraft handles the `export-draft` command.
func runExportDraft(output string) error {
	ctx, cancel := setupContext()
	defer cancel()

	sh := newShell(loadConfig())
	defer sh.close()

	doc, err := sh.document(ctx, "")
	if err != nil {
		return err
	}
	return sh.writeDraft(doc, output)
}

// runDelete handles the `delete` command.
func runDelete() error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	if err := sh.openStore(ctx); err != nil {
		return err
	}
	defer sh.close()

	sh.status.Set(status.Deleting)
	if err := sh.store.Delete(ctx, cfg.ProjectKey); err != nil {
		sh.status.Set(status.Error)
		return fmt.Errorf("delete project %s: %w", cfg.ProjectKey, err)
	}
	sh.status.Set(status.Deleted)
	return nil
}

// runStats handles the `stats` command.
func runStats(path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	sh := newShell(loadConfig())
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	st := doc.Stats()
	percent := 0.0
	if st.Lines > 0 {
		percent = 100 * float64(st.Translated) / float64(st.Lines)
	}
	log.Info().
		Int("sections", st.Sections).
		Int("characters", st.Characters).
		Int("lines", st.Lines).
		Int("translated", st.Translated).
		Int("names", st.Names).
		Int("names_translated", st.NamesDone).
		Float64("progress", percent).
		Msg("Translation progress")
	return nil
}

// runLint handles the `lint` command.
func runLint(path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	sh := newShell(loadConfig())
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	problems := 0
	for _, s := range doc {
		for _, c := range s.Characters {
			for _, l := range c.Lines {
				if !l.HasTranslation() {
					continue
				}
				missing := escape.Missing(l.Text, *l.Translation)
				if len(missing) == 0 {
					continue
				}
				problems++
				log.Warn().
					Str("section", s.Name).
					Str("character", c.Name).
					Int("line", l.ID+1).
					Str("text", textutil.Truncate(l.Text, 40)).
					Strs("missing", missing).
					Msg("Translation drops escape codes")
			}
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d translated lines drop escape codes", problems)
	}
	log.Info().Msg("All translations keep their escape codes")
	return nil
}

// compiledFile is the outcome of compiling one file in compile-dir.
type compiledFile struct {
	output string
	lines  int
}

// compileJob pairs a discovered input with the file it compiles to.
type compileJob struct {
	entry  filewalker.FileEntry
	output string
	label  string
}

// planCompileJobs maps every entry under inputAbs to its output path under
// outputAbs. When the output directory sits inside the input directory,
// entries under it are skipped. Two inputs that would write the same
// output (foo.txt and foo.json) are an error.
func planCompileJobs(entries []filewalker.FileEntry, inputAbs, outputAbs, label string) ([]compileJob, error) {
	if inputAbs == outputAbs {
		return nil, fmt.Errorf("output directory must differ from input directory: %s", outputAbs)
	}

	nested := isWithin(outputAbs, inputAbs)

	var jobs []compileJob
	claimed := make(map[string]string)
	var collisions []string

	for _, entry := range entries {
		if nested && isWithin(entry.Path, outputAbs) {
			log.Debug().Str("file", entry.Path).Msg("Skipping file inside output directory")
			continue
		}

		rel, err := filepath.Rel(inputAbs, entry.Path)
		if err != nil {
			return nil, fmt.Errorf("compute relative path: %w", err)
		}
		base := strings.TrimSuffix(rel, filepath.Ext(rel))
		out := filepath.Join(outputAbs, base+".txt")

		if prev, ok := claimed[out]; ok {
			collisions = append(collisions, fmt.Sprintf("%s and %s both compile to %s", prev, entry.Path, out))
			continue
		}
		claimed[out] = entry.Path

		fileLabel := label
		if fileLabel == "" {
			fileLabel = filepath.Base(base)
		}
		jobs = append(jobs, compileJob{entry: entry, output: out, label: fileLabel})
	}

	if len(collisions) > 0 {
		return nil, fmt.Errorf("conflicting outputs: %s", strings.Join(collisions, "; "))
	}
	return jobs, nil
}

// isWithin reports whether path lies strictly below dir.
func isWithin(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// runCompileDir handles the `compile-dir` command.
func runCompileDir(inputDir, outputDir, label string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	w := filewalker.NewWalker()

	inputAbs, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolve input directory: %w", err)
	}
	outputAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	entries, err := w.Walk(inputAbs)
	if err != nil {
		return fmt.Errorf("walk input directory: %w", err)
	}
	jobs, err := planCompileJobs(entries, inputAbs, outputAbs, label)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputAbs, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	pool := worker.NewPool[compileJob, compiledFile](cfg.WorkerCount, func(ctx context.Context, job compileJob) (compiledFile, error) {
		doc, err := job.entry.Loader.Load(job.entry.Path)
		if err != nil {
			return compiledFile{}, err
		}

		lines := compiler.Compile(doc, job.label)
		if err := os.MkdirAll(filepath.Dir(job.output), 0755); err != nil {
			return compiledFile{}, fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(job.output, []byte(compiler.Join(lines)), 0644); err != nil {
			return compiledFile{}, fmt.Errorf("write compiled script: %w", err)
		}
		return compiledFile{output: job.output, lines: len(lines)}, nil
	})

	failed := 0
	for _, r := range pool.Execute(ctx, jobs) {
		if r.Err != nil {
			failed++
			log.Error().Err(r.Err).Str("file", r.Input.entry.Path).Msg("Compile failed")
			continue
		}
		log.Info().
			Str("input", r.Input.entry.Path).
			Str("output", r.Result.output).
			Int("lines", r.Result.lines).
			Msg("File compiled")
	}

	log.Info().
		Int("files", len(jobs)).
		Int("failed", failed).
		Str("output", outputDir).
		Msg("Directory compile complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(jobs))
	}
	return nil
}

// connectPostgres opens a pool for components that need PostgreSQL directly.
func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

// connectNeo4j opens and verifies a Neo4j driver.
func connectNeo4j(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")
	return driver, nil
}

// runMemoryLearn handles `memory learn`.
func runMemoryLearn(path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	memory := cache.NewTranslationMemory(pool)
	if err := memory.EnsureSchema(ctx); err != nil {
		return err
	}

	learned, err := memory.Learn(ctx, doc)
	if err != nil {
		return fmt.Errorf("learn translations: %w", err)
	}
	log.Info().Int("learned", learned).Msg("Translation memory updated")
	return nil
}

// runMemoryApply handles `memory apply`.
func runMemoryApply(path, output string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	memory := cache.NewTranslationMemory(pool)
	if err := memory.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := memory.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload translation memory")
	}

	applied := memory.Apply(ctx, doc)
	log.Info().Int("applied", applied).Msg("Filled lines from translation memory")

	return sh.saveResult(ctx, doc, path, output)
}

// runGlossarySync handles `glossary sync`.
func runGlossarySync(path string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	driver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	builder := graph.NewGlossaryBuilder(driver)
	if err := builder.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure glossary schema: %w", err)
	}
	return builder.Sync(ctx, cfg.ProjectKey, doc)
}

// runGlossaryApply handles `glossary apply`.
func runGlossaryApply(path, output string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := loadConfig()
	sh := newShell(cfg)
	defer sh.close()

	doc, err := sh.document(ctx, path)
	if err != nil {
		return err
	}

	driver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	names, err := graph.NewGlossaryQuerier(driver).DisplayNames(ctx, cfg.ProjectKey)
	if err != nil {
		return err
	}

	applied := graph.ApplyDisplayNames(doc, names)
	log.Info().Int("applied", applied).Msg("Filled speaker names from glossary")

	return sh.saveResult(ctx, doc, path, output)
}

func warnDuplicates(doc parser.Document) {
	for _, name := range doc.DuplicateSections() {
		log.Warn().Str("section", name).Msg("Section marker appears more than once")
	}
}
