/*
Package protocol is a root package for the agent-to-agent protocol
processors. Each sub-package registers its message handlers to the comm
processor in its init, so importing a protocol package is enough to activate
it. The processors drive the state machines in agent/psm through the
transition layer in agent/prot and never mutate machine state directly.
*/
package protocol
