// Command clipdex processes vocabulary word lists into verified, uploaded
// video clips. The run subcommand drives the pipeline; failures and stats
// inspect the checkpoint database it leaves behind.
package main
