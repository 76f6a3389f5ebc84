// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cgsec/digler/internal/block"
	"github.com/cgsec/digler/internal/exfat"
	"github.com/cgsec/digler/internal/fs"
	"github.com/spf13/cobra"
)

func DefineExfatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exfat",
		Short: "Inspect and recover files directly from an exFAT root directory",
	}
	cmd.PersistentFlags().Bool("include-deleted", false, "include entries whose directory slot is marked deleted")
	cmd.AddCommand(defineExfatLsCommand(), defineExfatExtractCommand())
	return cmd
}

func defineExfatLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "ls <image_path>",
		Short:        "List the root directory of an exFAT volume",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunExfatLs,
	}
}

func defineExfatExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "extract <image_path> <name> <dest_dir>",
		Short:        "Extract one named file from an exFAT volume's root directory",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE:         RunExfatExtract,
	}
	return cmd
}

func openExfatWalker(imagePath string) (fs.File, *exfat.Walker, error) {
	f, err := fs.Open(imagePath)
	if err != nil {
		return nil, nil, err
	}
	src, err := block.NewFileSource(f, 512)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	w, err := exfat.NewWalker(src)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, w, nil
}

func RunExfatLs(cmd *cobra.Command, args []string) error {
	includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

	f, w, err := openExfatWalker(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := w.ReadDir(exfat.ListOptions{ListDeleted: includeDeleted})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tDELETED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", e.Name, e.DataLength, e.ModifiedTime.Format("2006-01-02 15:04:05"), e.Deleted)
	}
	return tw.Flush()
}

func RunExfatExtract(cmd *cobra.Command, args []string) error {
	includeDeleted, _ := cmd.Flags().GetBool("include-deleted")
	imagePath, name, destDir := args[0], args[1], args[2]

	f, w, err := openExfatWalker(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := w.ReadDir(exfat.ListOptions{ListDeleted: includeDeleted})
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.Name != name {
			continue
		}
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return err
		}
		dst := filepath.Join(destDir, e.Name)
		if err := w.ExtractToFile(e, dst, exfat.ExtractOptions{ListDeleted: includeDeleted}); err != nil {
			return err
		}
		fmt.Printf("extracted %s (%d bytes) to %s\n", e.Name, e.DataLength, dst)
		return nil
	}
	return fmt.Errorf("exfat: no entry named %q in root directory", name)
}
