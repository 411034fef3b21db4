package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	portalURL    string
	cfgFile      string
	sessionToken string
	insecureTLS  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "psync",
	Short: "ProtocolSync compliance portal CLI",
	Long: `psync is the command-line interface for the ProtocolSync compliance portal.

It manages protocol document masters and their versions, delegations of
authority, and the append-only audit trail.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.psync")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("psync")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if portalURL == "" {
			portalURL = viper.GetString("portal_url")
		}
		if portalURL == "" {
			portalURL = "http://localhost:8080"
		}
		if sessionToken == "" {
			sessionToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.psync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&portalURL, "portal", "", "Portal base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&sessionToken, "token", "", "Session token (default $PSYNC_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&insecureTLS, "insecure", false, "Skip TLS certificate verification (development only)")

	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(delegationsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(adminTokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if sessionToken != "" {
		opts = append(opts, client.WithBearerToken(sessionToken))
	}
	if insecureTLS {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	return client.MustNew(portalURL, opts...)
}

// ── documents ────────────────────────────────────────────────────────────────

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage protocol document masters",
}

var (
	docTrialID     string
	docDisplayName string
)

var documentsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new protocol document master",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := newClient().RegisterDocument(context.Background(), &client.RegisterDocumentRequest{
			TrialID:     docTrialID,
			DisplayName: docDisplayName,
		})
		if err != nil {
			return fmt.Errorf("register document: %w", err)
		}
		fmt.Printf("✓ Document registered\n\n")
		fmt.Printf("  ID:    %s\n", doc.ID)
		fmt.Printf("  Trial: %s\n", doc.TrialID)
		fmt.Printf("  Name:  %s\n", doc.DisplayName)
		return nil
	},
}

var documentsListCmd = &cobra.Command{
	Use:   "list <trial-uuid>",
	Short: "List document masters of a trial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := newClient().ListDocuments(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.DisplayName, d.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var documentsVersionsCmd = &cobra.Command{
	Use:   "versions <document-uuid>",
	Short: "List all versions of a document, oldest upload first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := newClient().ListVersions(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tSTATUS\tUPLOADED BY\tUPLOADED AT")
		for _, v := range vs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				v.ID, v.VersionNumber, v.Status, v.UploadedBy, v.UploadedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var documentsCurrentCmd = &cobra.Command{
	Use:   "current <document-uuid>",
	Short: "Show the document's current version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newClient().CurrentVersion(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get current version: %w", err)
		}
		printVersion(v)
		return nil
	},
}

func init() {
	documentsRegisterCmd.Flags().StringVar(&docTrialID, "trial", "", "Trial UUID the document belongs to")
	documentsRegisterCmd.Flags().StringVar(&docDisplayName, "name", "", "Display name for the document")
	_ = documentsRegisterCmd.MarkFlagRequired("trial")
	_ = documentsRegisterCmd.MarkFlagRequired("name")

	documentsCmd.AddCommand(documentsRegisterCmd)
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsVersionsCmd)
	documentsCmd.AddCommand(documentsCurrentCmd)
}

// ── upload ───────────────────────────────────────────────────────────────────

var (
	uploadDocument string
	uploadVersion  string
	uploadFileRef  string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Record a newly uploaded protocol revision",
	Long: `upload records a protocol revision in status uploaded. The file itself is
stored by the document management system; --file-ref carries its reference.
Promote the version separately with 'psync promote'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newClient().RegisterUpload(context.Background(), &client.RegisterUploadRequest{
			DocumentMasterID: uploadDocument,
			VersionNumber:    uploadVersion,
			FileReference:    uploadFileRef,
		})
		if err != nil {
			return fmt.Errorf("register upload: %w", err)
		}
		fmt.Printf("✓ Version %s uploaded\n\n", v.VersionNumber)
		printVersion(v)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDocument, "document", "", "Document master UUID")
	uploadCmd.Flags().StringVar(&uploadVersion, "version", "", "Version number (e.g. 2.1)")
	uploadCmd.Flags().StringVar(&uploadFileRef, "file-ref", "", "Reference to the stored protocol file")
	_ = uploadCmd.MarkFlagRequired("document")
	_ = uploadCmd.MarkFlagRequired("version")
	_ = uploadCmd.MarkFlagRequired("file-ref")
}

// ── promote ──────────────────────────────────────────────────────────────────

var promoteForce bool

var promoteCmd = &cobra.Command{
	Use:   "promote <version-uuid>",
	Short: "Promote a version to current, superseding the previous current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c := newClient()

		target, err := c.GetVersion(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}

		fmt.Printf("\nVersion to promote:\n\n")
		fmt.Printf("  ID:       %s\n", target.ID)
		fmt.Printf("  Document: %s\n", target.DocumentMasterID)
		fmt.Printf("  Number:   %s\n", target.VersionNumber)
		fmt.Printf("  Status:   %s\n\n", target.Status)

		if !promoteForce {
			fmt.Print("Site staff will be retrained against the new current version. Proceed? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		v, err := c.PromoteVersion(ctx, args[0])
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		fmt.Printf("✓ Version %s is now current\n", v.VersionNumber)
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVar(&promoteForce, "force", false, "Skip confirmation prompt")
}

// ── delegations ──────────────────────────────────────────────────────────────

var delegationsCmd = &cobra.Command{
	Use:   "delegations",
	Short: "Manage delegations of authority",
}

var (
	delVersionID string
	delUserID    int64
	delJobTitle  string
	delStart     string
)

var delegationsIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a delegation of authority in status pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now().UTC()
		if delStart != "" {
			var err error
			start, err = time.Parse("2006-01-02", delStart)
			if err != nil {
				return fmt.Errorf("parse --start (want YYYY-MM-DD): %w", err)
			}
		}

		d, err := newClient().IssueDelegation(context.Background(), &client.IssueDelegationRequest{
			ProtocolVersionID:  delVersionID,
			DelegatedUserID:    delUserID,
			JobTitle:           delJobTitle,
			EffectiveStartDate: start,
		})
		if err != nil {
			return fmt.Errorf("issue delegation: %w", err)
		}
		fmt.Printf("✓ Delegation issued (pending signature)\n\n")
		fmt.Printf("  ID:      %s\n", d.ID)
		fmt.Printf("  User:    %d\n", d.DelegatedUserID)
		fmt.Printf("  Title:   %s\n", d.JobTitle)
		fmt.Printf("  Version: %s\n", d.ProtocolVersionID)
		return nil
	},
}

var signPrintedName string

var delegationsSignCmd = &cobra.Command{
	Use:   "sign <delegation-uuid> <accept|decline>",
	Short: "Sign a pending delegation addressed to you",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		decision := args[1]
		if decision != "accept" && decision != "decline" {
			return fmt.Errorf("decision must be accept or decline, got %q", decision)
		}
		d, err := newClient().SignDelegation(context.Background(), args[0], decision, signPrintedName)
		if err != nil {
			return fmt.Errorf("sign delegation: %w", err)
		}
		fmt.Printf("✓ Delegation %s: %s\n", d.ID, d.Status)
		return nil
	},
}

var revokeForce bool

var delegationsRevokeCmd = &cobra.Command{
	Use:   "revoke <delegation-uuid>",
	Short: "Revoke an accepted delegation (administrators only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c := newClient()

		d, err := c.GetDelegation(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get delegation: %w", err)
		}

		fmt.Printf("\nDelegation to revoke:\n\n")
		fmt.Printf("  ID:     %s\n", d.ID)
		fmt.Printf("  User:   %d\n", d.DelegatedUserID)
		fmt.Printf("  Title:  %s\n", d.JobTitle)
		fmt.Printf("  Status: %s\n\n", d.Status)

		if !revokeForce {
			fmt.Print("This action cannot be undone. Confirm revocation? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		revoked, err := c.RevokeDelegation(ctx, args[0])
		if err != nil {
			return fmt.Errorf("revoke delegation: %w", err)
		}
		fmt.Printf("✓ Delegation revoked: %s\n", revoked.ID)
		return nil
	},
}

var delegationsMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List delegations granted to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := newClient().MyDelegations(context.Background())
		if err != nil {
			return fmt.Errorf("list delegations: %w", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tTITLE\tSTATUS\tISSUED")
		for _, d := range ds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.ProtocolVersionID, d.JobTitle, d.Status, d.DelegationDate.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	delegationsIssueCmd.Flags().StringVar(&delVersionID, "version", "", "Protocol version UUID")
	delegationsIssueCmd.Flags().Int64Var(&delUserID, "user", 0, "Delegatee user ID")
	delegationsIssueCmd.Flags().StringVar(&delJobTitle, "title", "", "Job title on the delegation log (e.g. Sub-Investigator)")
	delegationsIssueCmd.Flags().StringVar(&delStart, "start", "", "Effective start date YYYY-MM-DD (default today)")
	_ = delegationsIssueCmd.MarkFlagRequired("version")
	_ = delegationsIssueCmd.MarkFlagRequired("user")
	_ = delegationsIssueCmd.MarkFlagRequired("title")

	delegationsSignCmd.Flags().StringVar(&signPrintedName, "name", "", "Printed name recorded with the signature")
	_ = delegationsSignCmd.MarkFlagRequired("name")

	delegationsRevokeCmd.Flags().BoolVar(&revokeForce, "force", false, "Skip confirmation prompt")

	delegationsCmd.AddCommand(delegationsIssueCmd)
	delegationsCmd.AddCommand(delegationsSignCmd)
	delegationsCmd.AddCommand(delegationsRevokeCmd)
	delegationsCmd.AddCommand(delegationsMineCmd)
}

// ── audit ────────────────────────────────────────────────────────────────────

var auditFormat string

var auditCmd = &cobra.Command{
	Use:   "audit <protocol_version|delegation> <entity-uuid>",
	Short: "Show an entity's audit chain",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := newClient().AuditLog(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("fetch audit log: %w", err)
		}

		if auditFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tFROM\tTO\tACTOR\tHASH")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				r.Timestamp.Format(time.RFC3339), r.FromStatus, r.ToStatus, r.ActorID, r.RecordHash[:12])
		}
		return w.Flush()
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <protocol_version|delegation> <entity-uuid>",
	Short: "Verify an entity's audit chain end to end",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().VerifyChain(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("✓ Audit chain intact")
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditFormat, "format", "text", "Output format: text or json")
	auditCmd.AddCommand(auditVerifyCmd)
}

// ── admin-token ──────────────────────────────────────────────────────────────

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token <secret>",
	Short: "Exchange the admin secret for a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := newClient().AdminToken(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("exchange admin secret: %w", err)
		}
		fmt.Println(tok)
		fmt.Fprintln(os.Stderr, "\nexport PSYNC_TOKEN=<token above> to use it with subsequent commands")
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the psync CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("psync %s (ProtocolSync portal)\n", version)
	},
}

func printVersion(v *client.Version) {
	fmt.Printf("  ID:       %s\n", v.ID)
	fmt.Printf("  Document: %s\n", v.DocumentMasterID)
	fmt.Printf("  Number:   %s\n", v.VersionNumber)
	fmt.Printf("  Status:   %s\n", v.Status)
	fmt.Printf("  Hash:     %s\n", v.RecordHash)
}
