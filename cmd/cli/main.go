package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/aggregate"
	"github.com/dvloznov/statement-ledger/internal/analyze"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/document/pdfcodec"
	"github.com/dvloznov/statement-ledger/internal/extract"
	"github.com/dvloznov/statement-ledger/internal/fetch"
	"github.com/dvloznov/statement-ledger/internal/gemini"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/notionexport"
	"github.com/dvloznov/statement-ledger/internal/passwords"
	"github.com/dvloznov/statement-ledger/internal/snapshot"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(log)
	case "list":
		runList(log)
	case "report":
		runReport(log)
	case "edit":
		runEdit(log)
	case "add":
		runAdd(log)
	case "rm-item":
		runRemoveItem(log)
	case "rm":
		runRemoveEntry(log)
	case "retry":
		runRetry(log)
	case "export":
		runExport(log)
	case "import":
		runImport(log)
	case "upload":
		runUpload(log)
	case "notion":
		runNotion(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  ledger <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Analyze statement PDFs (local paths or gs:// URIs)")
	fmt.Println("  list      List all entries with their status")
	fmt.Println("  report    Print the consolidated monthly report")
	fmt.Println("  edit      Edit one line item field")
	fmt.Println("  add       Add a manual line item to a period/institution")
	fmt.Println("  rm-item   Delete one line item")
	fmt.Println("  rm        Remove an entry and its results")
	fmt.Println("  retry     Re-analyze a failed entry")
	fmt.Println("  export    Export the ledger snapshot to a file")
	fmt.Println("  import    Import a previously exported snapshot")
	fmt.Println("  upload    Stage a local statement PDF in Cloud Storage")
	fmt.Println("  notion    Push the consolidated ledger to Notion")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'ledger <command> -h' for more information on a command.")
}

// loadSession restores the persisted snapshot into a fresh store. A missing
// snapshot yields an empty session.
func loadSession(ctx context.Context, cfg *config.Config) (*ledger.Store, snapshot.Store, error) {
	snapStore, err := snapshot.NewStore(cfg.SnapshotURI)
	if err != nil {
		return nil, nil, err
	}

	store := ledger.NewStore()
	snap, err := snapStore.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if snap != nil {
		store.RestoreFromSnapshot(snap.Records())
	}
	return store, snapStore, nil
}

func saveSession(ctx context.Context, snapStore snapshot.Store, store *ledger.Store) error {
	return snapStore.Save(ctx, snapshot.FromEntries(store.Entries()))
}

// resolveEntryID accepts either an entry id or a 1-based position in the
// list output.
func resolveEntryID(store *ledger.Store, arg string) (string, error) {
	entries := store.Entries()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("entry %d out of range (have %d)", n, len(entries))
		}
		return entries[n-1].ID, nil
	}
	for _, e := range entries {
		if e.ID == arg {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("entry %q not found", arg)
}

func stdinPrompt() passwords.PromptFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(_ context.Context) (string, error) {
		fmt.Fprint(os.Stderr, "Document password (empty to skip): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", passwords.ErrCanceled
		}
		pw := strings.TrimSpace(line)
		if pw == "" {
			return "", passwords.ErrCanceled
		}
		return pw, nil
	}
}

func runAnalyze(log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	noInput := fs.Bool("no-input", false, "Never prompt for passwords; skip locked documents")
	fs.Parse(os.Args[2:])

	sources := fs.Args()
	if len(sources) == 0 {
		log.Fatal().Msg("Usage: ledger analyze [options] FILE...")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	for _, src := range sources {
		data, err := fetch.Fetch(ctx, src)
		if err != nil {
			log.Fatal().Err(err).Str("source", src).Msg("Failed to fetch document")
		}
		id := store.IngestUpload(fetch.Filename(src), data)
		log.Info().Str("entry_id", id).Str("source", src).Msg("Queued document")
	}

	var prompt passwords.PromptFunc
	if !*noInput {
		prompt = stdinPrompt()
	}
	resolver := passwords.NewResolver(pdfcodec.New(nil), cfg.Passwords, prompt)
	selector := extract.NewSelector(gemini.Instruction, cfg.RasterScale)

	client, err := gemini.NewClient(ctx, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	analyze.NewQueue(store, resolver, selector, client).ProcessPending(ctx)

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}

	printEntries(store)
}

func runList(log zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, _, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	printEntries(store)
}

func printEntries(store *ledger.Store) {
	entries := store.Entries()
	fmt.Printf("\n=== Entries (%d) ===\n", len(entries))
	for i, e := range entries {
		fmt.Printf("\n%d. %s\n", i+1, e.FileName)
		fmt.Printf("   ID:     %s\n", e.ID)
		fmt.Printf("   Status: %s\n", e.Status)
		if e.Fingerprint != "" {
			fmt.Printf("   Hash:   %.16s…\n", e.Fingerprint)
		}
		if e.Result != nil {
			fmt.Printf("   Kind:   %s (%s)\n", e.Result.Kind, e.Result.InstitutionName)
		}
		if e.Diagnostic != "" {
			fmt.Printf("   Error:  %s\n", e.Diagnostic)
		}
	}
	fmt.Println()
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sortKey := fs.String("sort", "", "Sort tables by column (date, description, amount, category)")
	sortDesc := fs.Bool("desc", false, "Sort descending")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, _, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	entries := store.Entries()
	acfg := aggregate.Config{CutoffDay: cfg.CutoffDay}
	led := aggregate.Build(entries, acfg)

	if *sortKey != "" {
		acfg.Sorts = make(map[aggregate.TableKey]aggregate.SortState)
		for _, p := range led.Periods {
			for _, g := range p.Institutions {
				for _, tbl := range g.Tables {
					key := aggregate.TableKey{Period: p.Period, Institution: g.Institution, Array: tbl.Array}
					acfg.Sorts[key] = aggregate.SortState{Key: *sortKey, Desc: *sortDesc}
				}
			}
		}
		led = aggregate.Build(entries, acfg)
	}

	printLedger(led)

	fmt.Printf("Total ending balance: %.2f\n\n", aggregate.TotalEndingBalance(entries))
}

func printLedger(led *aggregate.Ledger) {
	for _, p := range led.Periods {
		fmt.Printf("\n=== %s ===\n", p.Period)
		for _, g := range p.Institutions {
			fmt.Printf("\n%s (total %.2f)\n", g.Institution, g.Total)
			for _, tbl := range g.Tables {
				if len(tbl.Items) == 0 {
					continue
				}
				fmt.Printf("  [%s] subtotal %.2f\n", tbl.Array, tbl.Subtotal)
				for _, item := range tbl.Items {
					amount := "-"
					if item.Amount != nil {
						amount = fmt.Sprintf("%.2f", *item.Amount)
					}
					fmt.Printf("    %-12s %-32s %10s  %s\n",
						item.Date, item.Description, amount, item.Category)
					if item.ForeignAmount != nil {
						fmt.Printf("    %-12s   foreign: %.2f %s\n", "", *item.ForeignAmount, item.ForeignCurrency)
					}
				}
			}
		}
	}
	fmt.Println()
}

func runEdit(log zerolog.Logger) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	entry := fs.String("entry", "", "Entry id or list position")
	array := fs.String("array", ledger.ArrayTransactions, "Line item array (transactions, rewards, withdrawals, deposits)")
	index := fs.Int("index", -1, "Line item index within the array")
	field := fs.String("field", "", "Field to edit (date, description, amount, category, foreign_amount, foreign_currency)")
	value := fs.String("value", "", "New value")
	fs.Parse(os.Args[2:])

	if *entry == "" || *index < 0 || *field == "" {
		log.Fatal().Msg("Usage: ledger edit -entry N -array A -index I -field F -value V")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	id, err := resolveEntryID(store, *entry)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot resolve entry")
	}

	key := ledger.ItemKey{EntryID: id, Array: *array, Index: *index}
	if err := store.ApplyManualEdit(key, *field, *value); err != nil {
		log.Fatal().Err(err).Msg("Edit failed")
	}

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Printf("Updated %s.%s\n", key, *field)
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	period := fs.String("period", "", "Billing period (YYYY-MM)")
	institution := fs.String("institution", "", "Institution name")
	array := fs.String("array", ledger.ArrayTransactions, "Line item array")
	fs.Parse(os.Args[2:])

	if *period == "" || *institution == "" {
		log.Fatal().Msg("Usage: ledger add -period YYYY-MM -institution NAME [-array A]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	key, err := store.AddManualLineItem(*period, *institution, *array)
	if err != nil {
		log.Fatal().Err(err).Msg("Add failed")
	}

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Printf("Added blank item %s; fill it in with 'ledger edit'\n", key)
}

func runRemoveItem(log zerolog.Logger) {
	fs := flag.NewFlagSet("rm-item", flag.ExitOnError)
	entry := fs.String("entry", "", "Entry id or list position")
	array := fs.String("array", ledger.ArrayTransactions, "Line item array")
	index := fs.Int("index", -1, "Line item index within the array")
	fs.Parse(os.Args[2:])

	if *entry == "" || *index < 0 {
		log.Fatal().Msg("Usage: ledger rm-item -entry N -array A -index I")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	id, err := resolveEntryID(store, *entry)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot resolve entry")
	}

	key := ledger.ItemKey{EntryID: id, Array: *array, Index: *index}
	if err := store.DeleteLineItem(key); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Printf("Deleted %s\n", key)
}

func runRemoveEntry(log zerolog.Logger) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	entry := fs.String("entry", "", "Entry id or list position")
	fs.Parse(os.Args[2:])

	if *entry == "" {
		log.Fatal().Msg("Usage: ledger rm -entry N")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	id, err := resolveEntryID(store, *entry)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot resolve entry")
	}

	if err := store.RemoveEntry(id); err != nil {
		log.Fatal().Err(err).Msg("Remove failed")
	}

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Println("Entry removed.")
}

func runRetry(log zerolog.Logger) {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	entry := fs.String("entry", "", "Entry id or list position")
	noInput := fs.Bool("no-input", false, "Never prompt for passwords")
	fs.Parse(os.Args[2:])

	if *entry == "" {
		log.Fatal().Msg("Usage: ledger retry -entry N")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	id, err := resolveEntryID(store, *entry)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot resolve entry")
	}

	if err := store.Reanalyze(id); err != nil {
		log.Fatal().Err(err).Msg("Cannot retry entry")
	}

	var prompt passwords.PromptFunc
	if !*noInput {
		prompt = stdinPrompt()
	}
	resolver := passwords.NewResolver(pdfcodec.New(nil), cfg.Passwords, prompt)
	selector := extract.NewSelector(gemini.Instruction, cfg.RasterScale)

	client, err := gemini.NewClient(ctx, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	analyze.NewQueue(store, resolver, selector, client).ProcessPending(ctx)

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}

	printEntries(store)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("file", "", "Output path (defaults to stdout)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, _, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	snap := snapshot.FromEntries(store.Entries())

	if *out == "" {
		if err := snap.Encode(os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create export file")
	}
	defer f.Close()
	if err := snap.Encode(f); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Exported ledger to %s\n", *out)
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("file", "", "Snapshot file to import")
	fs.Parse(os.Args[2:])

	if *in == "" {
		log.Fatal().Msg("Usage: ledger import -file PATH")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)
	store, snapStore, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot open import file")
	}
	defer f.Close()

	// A malformed file is rejected here, before any state changes.
	imported, err := snapshot.Decode(f)
	if err != nil {
		log.Fatal().Err(err).Msg("Import file rejected")
	}

	// Merge: current records first so they win bill-hash conflicts.
	current := snapshot.FromEntries(store.Entries())
	merged := append(current.Records(), imported.Records()...)
	store.RestoreFromSnapshot(merged)

	if err := saveSession(ctx, snapStore, store); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}
	fmt.Printf("Imported %s; ledger now has %d entries\n", *in, len(store.Entries()))
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "Local PDF to upload")
	dest := fs.String("dest", "", "Destination gs://bucket/object URI")
	fs.Parse(os.Args[2:])

	if *file == "" || *dest == "" {
		log.Fatal().Msg("Usage: ledger upload -file PATH -dest gs://bucket/object")
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().Str("file", *file).Str("dest", *dest).Msg("Uploading statement")
	if err := fetch.Upload(ctx, *file, *dest); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to %s\n", *file, *dest)
}

func runNotion(log zerolog.Logger) {
	fs := flag.NewFlagSet("notion", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Log what would change without writing to Notion")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_DATABASE_ID must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, _, err := loadSession(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load snapshot")
	}

	led := aggregate.Build(store.Entries(), aggregate.Config{CutoffDay: cfg.CutoffDay})

	client := notionexport.NewNotionClient(cfg.NotionToken)
	stats, err := notionexport.Export(ctx, client, cfg.NotionDatabaseID, led, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion export failed")
	}

	fmt.Printf("Notion export: %d created, %d updated, %d skipped\n",
		stats.Created, stats.Updated, stats.Skipped)
}
