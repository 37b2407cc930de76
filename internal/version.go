package internal

// Version is the driver version sent to the server in the connection
// handshake.
const Version = "0.2.0"
