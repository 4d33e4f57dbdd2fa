package cli

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/pquerna/otp"
	"github.com/tech-arch1tect/showcase/services/provisioning"
)

const (
	qrSize  = 256
	warning = "WARNING: these values are shown once and cannot be recovered. Store them in a password manager now."
)

func printResult(out io.Writer, r *provisioning.Result, qrPath string) {
	if r.DryRun {
		fmt.Fprintln(out, "DRY RUN: nothing was written.")
	}
	if r.AccountID != 0 {
		fmt.Fprintf(out, "Account:   %s (id %d)\n", r.Username, r.AccountID)
	} else {
		fmt.Fprintf(out, "Account:   %s\n", r.Username)
	}

	if !r.TOTPEnabled {
		fmt.Fprintln(out, "TOTP:      disabled")
		return
	}

	fmt.Fprintln(out, "TOTP:      enabled")
	fmt.Fprintf(out, "Secret:    %s\n", r.Secret)
	fmt.Fprintf(out, "URI:       %s\n", r.URI())
	if qrPath != "" {
		fmt.Fprintf(out, "QR code:   %s\n", qrPath)
	}
	fmt.Fprintln(out, "Recovery codes:")
	printCodes(out, r.RecoveryCodes)
	fmt.Fprintln(out)
	fmt.Fprintln(out, warning)
}

func printCodes(out io.Writer, codes []string) {
	for i, code := range codes {
		fmt.Fprintf(out, "  %2d. %s\n", i+1, code)
	}
}

type jsonResult struct {
	AccountID     uint     `json:"account_id,omitempty"`
	Username      string   `json:"username"`
	TOTPEnabled   bool     `json:"totp_enabled"`
	Secret        string   `json:"secret,omitempty"`
	URI           string   `json:"uri,omitempty"`
	QRCode        string   `json:"qr_code,omitempty"`
	RecoveryCodes []string `json:"recovery_codes,omitempty"`
	DryRun        bool     `json:"dry_run,omitempty"`
}

func printJSON(out io.Writer, r *provisioning.Result, qrPath string) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonResult{
		AccountID:     r.AccountID,
		Username:      r.Username,
		TOTPEnabled:   r.TOTPEnabled,
		Secret:        r.Secret,
		URI:           r.URI(),
		QRCode:        qrPath,
		RecoveryCodes: r.RecoveryCodes,
		DryRun:        r.DryRun,
	})
}

// writeQR renders the otpauth URI as a PNG readable only by the owner.
func writeQR(path string, key *otp.Key) error {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create QR file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return f.Close()
}
