package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/addityasingh/modmatch/pkg/hashing"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file...>",
	Short: "Print content digests for the given files",
	Long: `Hash computes the content digest modmatch would use for matching. Useful
for building manifests or checking why a file does not match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

var hashAlgorithm string

func init() {
	rootCmd.AddCommand(hashCmd)

	hashCmd.Flags().StringVarP(&hashAlgorithm, "algorithm", "a", hashing.DefaultAlgorithm,
		fmt.Sprintf("Digest algorithm (%v)", hashing.Supported()))
}

func runHash(cmd *cobra.Command, args []string) error {
	hasher, err := hashing.NewComputer(hashAlgorithm)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		digest, err := hasher.Compute(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", digest, path)
	}
	return nil
}
