package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ai-scene-narrator-service/internal/app"
	"ai-scene-narrator-service/internal/config"
)

var peopleJSON bool

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Remembered people",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered people",
	Long: `List remembered people in enrollment order.

Reads STORE_DIR directly, so the narrator must not be running against the
same directory.

Examples:
  narrator people list
  narrator people list --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := app.New(config.Load()).OpenStore()
		if err != nil {
			return err
		}
		defer st.Close()

		people, err := st.AllPeople(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if peopleJSON {
			type row struct {
				ID        uint64    `json:"id"`
				Name      string    `json:"name"`
				CreatedAt time.Time `json:"createdAt"`
			}
			rows := make([]row, 0, len(people))
			for _, p := range people {
				rows = append(rows, row{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt})
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREMEMBERED")
		for _, p := range people {
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

func init() {
	peopleListCmd.Flags().BoolVar(&peopleJSON, "json", false, "output JSON")
	peopleCmd.AddCommand(peopleListCmd)
	rootCmd.AddCommand(peopleCmd)
}
