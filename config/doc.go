/*
Package config holds the operator configuration for nodeward: where the
node's control endpoint listens and which long-term public key it presents.

Configuration lives in a directory, the config root, holding "config.toml".
The root is located by the NODEWARD_ROOT environment variable, by walking up
from the working directory towards the filesystem root looking for a
".nodeward" directory, or by falling back to "$HOME/.nodeward". "nodeward
init" provisions a fresh root.
*/
package config
