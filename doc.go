/*
Package main is the application package of the Findy issuer agency. The
agency orchestrates pairwise connections and credential exchanges for an
issuer service and its web wallet users: it maintains the protocol state
machines, answers the polling API the clients follow the lifecycles with, and
speaks the agent-to-agent protocols over its DIDComm transport endpoint.

The agency is structured to the following sub-packages:

	agent    framework packages: state machines, storage, comm, didcomm models
	cmds     commands the CLI builds on
	protocol processors for the agent-to-agent protocols
	server   the http gateway for APIs and the transport endpoint

The build-in CLI starts and probes the agency with minimal dependencies to
other utilities; runtime configuration comes from flags, environment
variables or a config file.
*/
package main
