package internal

// Version is the bookmaker release version
const Version = "0.3.0"
