package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"eduverify/internal/app"
	"eduverify/internal/certificate/models"
	"eduverify/pkg/domain"
)

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <student>",
		Short: "List a student's certificates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			c.model.SetStudent(student.String())
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c.model.ApplyList(a.Service.List(ctx, student))
				c.render()
				return c.result()
			})
		},
	}
}

func (c *cli) newIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <student> <file.pdf>",
		Short: "Upload a document and issue it as a certificate",
		Long: `Uploads the document, issues a certificate for its content hash and
registers the student first when the registry does not know them yet.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			doc := models.Document{Name: filepath.Base(args[1]), Content: content}
			c.model.SetIssueForm(student.String(), &doc)

			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Service.Issue(ctx, student, doc)
				c.model.ApplyIssue(res, err)
				if err == nil {
					fmt.Fprintf(c.out, "content hash: %s\n", res.ContentHash)
					if res.Registered {
						fmt.Fprintf(c.out, "student %s was registered\n", student.Short())
					}
				}
				c.render()
				return c.result()
			})
		},
	}
}

func (c *cli) newRevokeCmd() *cobra.Command {
	var (
		hash     string
		issuedAt int64
		index    int
	)
	cmd := &cobra.Command{
		Use:   "revoke <student> (--hash H [--issued-at T] | --index N)",
		Short: "Revoke one certificate",
		Long: `Revokes by explicit index, or by content hash resolved against a fresh
read of the student's certificates. --issued-at picks between entries
sharing the same hash.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			byIndex := cmd.Flags().Changed("index")
			if byIndex == (hash != "") {
				return fmt.Errorf("exactly one of --hash or --index is required")
			}
			c.model.SetStudent(student.String())

			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if byIndex {
					c.model.ApplyRevoke(a.Service.RevokeAt(ctx, student, index))
				} else {
					target := models.Certificate{
						IssuedTo: student,
						IPFSHash: domain.ContentHash(hash),
						IssuedAt: models.Timestamp(issuedAt),
					}
					c.model.OpenRevokeDialog(target)
					c.model.ApplyRevoke(a.Service.Revoke(ctx, student, target))
				}
				c.render()
				return c.result()
			})
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "content hash of the certificate")
	cmd.Flags().Int64Var(&issuedAt, "issued-at", 0, "issuance time in seconds since epoch")
	cmd.Flags().IntVar(&index, "index", 0, "position in the student's sequence")
	return cmd
}

func (c *cli) newVerifyCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "verify <student> <hash>",
		Short: "Check a certificate against the registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			hash, err := domain.ParseContentHash(args[1])
			if err != nil {
				return err
			}
			c.model.SetVerifyHash(hash.String())

			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c.model.ApplyVerify(a.Service.Verify(ctx, models.VerificationQuery{
					Student: student,
					Index:   index,
					Hash:    hash,
				}))
				if s := c.model.Snapshot(); s.Verification != "" {
					fmt.Fprintln(c.out, s.Verification)
				}
				c.renderNotification()
				return c.result()
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "position in the student's sequence")
	return cmd
}
