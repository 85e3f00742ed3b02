package cli

import (
	"encoding/json"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revgate/internal/selector"
)

var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List the registered analyzers",
	Long: `List every analyzer in the registry in dispatch order, with the
predicate that decides whether it applies to a change.`,
	Args: cobra.NoArgs,
	RunE: runAnalyzers,
}

func init() {
	analyzersCmd.Flags().Bool("json", false, "print the list as JSON")
}

type analyzerInfo struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Priority  int    `json:"priority"`
	Timeout   string `json:"timeout"`
	Weight    int64  `json:"weight"`
	AlwaysRun bool   `json:"always_run"`
	Cacheable bool   `json:"cacheable"`
	Predicate string `json:"predicate"`
}

func runAnalyzers(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	reg, err := e.loadRegistry()
	if err != nil {
		return err
	}

	ds := reg.All()
	selector.Sort(ds)

	infos := make([]analyzerInfo, 0, len(ds))
	for _, d := range ds {
		infos = append(infos, analyzerInfo{
			ID:        d.ID,
			Kind:      string(d.Kind),
			Priority:  d.Priority,
			Timeout:   d.Timeout.String(),
			Weight:    d.Weight,
			AlwaysRun: d.AlwaysRun,
			Cacheable: d.Cacheable,
			Predicate: d.Predicate.String(),
		})
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Kind", "Priority", "Timeout", "Weight", "Applies to"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, a := range infos {
		applies := a.Predicate
		if a.AlwaysRun {
			applies = "always"
		}
		table.Append([]string{a.ID, a.Kind, strconv.Itoa(a.Priority), a.Timeout, strconv.FormatInt(a.Weight, 10), applies})
	}
	table.Render()
	return nil
}
