package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/store"
)

var (
	riskScore   int
	riskLevel   string
	riskInitial string
	riskLogic   string
	riskSME     string
	riskDetails []string
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Record and show client risk assessments",
}

var riskShowCmd = &cobra.Command{
	Use:   "show [client-id]",
	Short: "Show the latest assessment for a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runRiskShow,
}

var riskRecordCmd = &cobra.Command{
	Use:   "record [client-id]",
	Short: "Record an assessment from the scoring engine",
	Long: `Stores an assessment and flags the client's open cases with RISK_CHANGED.
Details are given as type:element=value:score, e.g. --detail Geo:country=DE:10`,
	Args: cobra.ExactArgs(1),
	RunE: runRiskRecord,
}

func init() {
	riskRecordCmd.Flags().IntVar(&riskScore, "score", 0, "Overall score")
	riskRecordCmd.Flags().StringVarP(&riskLevel, "level", "l", "", "Overall level: LOW, MEDIUM, HIGH")
	riskRecordCmd.Flags().StringVar(&riskInitial, "initial", "", "Level before overrides")
	riskRecordCmd.Flags().StringVar(&riskLogic, "logic", "", "Rule that set the level")
	riskRecordCmd.Flags().StringVar(&riskSME, "sme", "", "Subject matter expert assessment")
	riskRecordCmd.Flags().StringArrayVar(&riskDetails, "detail", nil, "Detail row (repeatable)")

	riskCmd.AddCommand(riskShowCmd)
	riskCmd.AddCommand(riskRecordCmd)
}

func runRiskShow(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	clientID, err := parseID("client", args[0])
	if err != nil {
		return err
	}
	ra, err := a.risk.Latest(cmd.Context(), clientID)
	if err != nil {
		return err
	}
	if ra == nil {
		fmt.Printf("No risk assessment for client %d\n", clientID)
		return nil
	}

	fmt.Printf("Client %d: %s%s%s (score %d)\n", clientID, levelColor(ra.OverallLevel), ra.OverallLevel, colorReset, ra.OverallScore)
	if ra.InitialLevel != "" && ra.InitialLevel != ra.OverallLevel {
		fmt.Printf("  Initial:  %s\n", ra.InitialLevel)
	}
	if ra.LogicApplied != "" {
		fmt.Printf("  Logic:    %s\n", ra.LogicApplied)
	}
	if ra.SMEAssessment != "" {
		fmt.Printf("  SME:      %s\n", ra.SMEAssessment)
	}
	fmt.Printf("  Assessed: %s\n", ra.CreatedAt.Format("2006-01-02 15:04"))
	for _, d := range ra.Details {
		fmt.Printf("    %-9s %-16s %-16s %4d %s\n", d.RiskType, d.ElementName, d.ElementValue, d.Score, d.Flag)
	}
	return nil
}

func runRiskRecord(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.actor()
	if err != nil {
		return err
	}
	clientID, err := parseID("client", args[0])
	if err != nil {
		return err
	}
	ra := &store.RiskAssessment{
		ClientID:      clientID,
		OverallScore:  riskScore,
		InitialLevel:  strings.ToUpper(riskInitial),
		OverallLevel:  riskLevel,
		LogicApplied:  riskLogic,
		SMEAssessment: riskSME,
	}
	for _, raw := range riskDetails {
		d, err := parseRiskDetail(raw)
		if err != nil {
			return err
		}
		ra.Details = append(ra.Details, d)
	}

	if err := a.risk.Record(cmd.Context(), ra, actor.ID); err != nil {
		return err
	}
	fmt.Printf("Recorded %s risk for client %d\n", ra.OverallLevel, clientID)
	return nil
}

// parseRiskDetail reads "type:element=value:score".
func parseRiskDetail(s string) (store.RiskDetail, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return store.RiskDetail{}, fmt.Errorf("invalid detail %q, want type:element=value:score", s)
	}
	name, value, _ := strings.Cut(parts[1], "=")
	score, err := strconv.Atoi(parts[2])
	if err != nil {
		return store.RiskDetail{}, fmt.Errorf("invalid detail score %q", parts[2])
	}
	return store.RiskDetail{RiskType: parts[0], ElementName: name, ElementValue: value, Score: score}, nil
}

func levelColor(level string) string {
	switch level {
	case "HIGH":
		return colorRed + colorBold
	case "MEDIUM":
		return colorYellow
	case "LOW":
		return colorGreen
	default:
		return ""
	}
}
