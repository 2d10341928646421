package trigger

// Status texts shown to the user during one interaction.
const (
	StatusInProgress = "Scraping in progress... This may take several minutes. Please do not close this window."
	StatusComplete   = "Download complete! Ready for another scrape."
	StatusNoConnect  = "An error occurred. Could not connect to the server."

	// statusErrorPrefix precedes server-provided error text verbatim.
	statusErrorPrefix = "Error: "
)
