package cli

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mailgoat/mailgoat/internal/client"
	"github.com/mailgoat/mailgoat/internal/template"
)

// sendFlags holds the flag values for the send command.
type sendFlags struct {
	to           []string
	cc           []string
	bcc          []string
	subject      string
	body         string
	htmlBody     string
	attachments  []string
	tag          string
	templateName string
	templateData []string
}

// NewSendCmd creates the send command for delivering a single message.
func NewSendCmd() *cobra.Command {
	var flags sendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		Long: `Sends a single message through the MailGoat API.

The body comes from --body and/or --html-body, or from a built-in template
selected with --template and filled with repeated --data key=value pairs.`,
		Example: `  # Plain text message
  mailgoat send --to goat@example.com --subject "Hi" --body "Hello there"

  # Templated HTML message
  mailgoat send --to goat@example.com --subject "Welcome to MailGoat" \
    --template welcome --data name=Ada --data verification_link=https://mailgoat.ai/v/abc

  # With attachments and a tag
  mailgoat send --to goat@example.com --subject "Report" --body "Attached." \
    --attach report.pdf --tag monthly-report`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildSendRequest(&flags)
			if err != nil {
				return err
			}

			api, err := newAPIClient(cmd)
			if err != nil {
				return err
			}

			result, err := api.Send(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, result)
			}
			renderSendResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&flags.to, "to", nil, "recipient address (repeatable)")
	cmd.Flags().StringSliceVar(&flags.cc, "cc", nil, "carbon-copy address (repeatable)")
	cmd.Flags().StringSliceVar(&flags.bcc, "bcc", nil, "blind carbon-copy address (repeatable)")
	cmd.Flags().StringVar(&flags.subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&flags.body, "body", "", "plain text body")
	cmd.Flags().StringVar(&flags.htmlBody, "html-body", "", "HTML body")
	cmd.Flags().StringSliceVar(&flags.attachments, "attach", nil, "file to attach (repeatable)")
	cmd.Flags().StringVar(&flags.tag, "tag", "", "tag for categorizing the message")
	cmd.Flags().StringVar(&flags.templateName, "template", "", "built-in template name for the HTML body")
	cmd.Flags().StringSliceVar(&flags.templateData, "data", nil, "template data as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// buildSendRequest assembles a SendRequest from flags, rendering the
// template and loading attachments before anything touches the network.
func buildSendRequest(flags *sendFlags) (*client.SendRequest, error) {
	req := &client.SendRequest{
		To:       flags.to,
		Cc:       flags.cc,
		Bcc:      flags.bcc,
		Subject:  flags.subject,
		TextBody: flags.body,
		HTMLBody: flags.htmlBody,
		Tag:      flags.tag,
	}

	if flags.templateName != "" {
		if flags.htmlBody != "" {
			return nil, fmt.Errorf("--template and --html-body are mutually exclusive")
		}
		data, err := parseKeyValuePairs(flags.templateData)
		if err != nil {
			return nil, err
		}
		renderer, err := template.NewRenderer()
		if err != nil {
			return nil, err
		}
		html, err := renderer.Render(flags.templateName, data)
		if err != nil {
			return nil, err
		}
		req.HTMLBody = html
	}

	for _, path := range flags.attachments {
		attachment, err := loadAttachment(path)
		if err != nil {
			return nil, err
		}
		req.Attachments = append(req.Attachments, attachment)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// loadAttachment reads a file and encodes it for the send payload. The
// content type comes from the extension, falling back to sniffing the
// leading bytes.
func loadAttachment(path string) (client.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Attachment{}, fmt.Errorf("reading attachment %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return client.Attachment{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Content:     base64.StdEncoding.EncodeToString(data),
		Size:        int64(len(data)),
	}, nil
}
