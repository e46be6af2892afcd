/*

Dflat is a directory-based versioned object store.  A home directory
holds a sequence of numbered versions of a file tree, a symlink naming
the current version, and reversible delta (RedD) packages that let
superseded versions be rebuilt from newer ones.

Vocabulary:

- home: root directory of one store; holds dflat-info.txt
- version: numbered snapshot directory, v001, v002, ...
- full: a version's content tree (admin, annotation, data, enrichment
  plus manifest.txt, relationships.ttl, splash.txt)
- current: symlink naming the last committed version
- latest: numerically greatest version; differs from current after a
  checkout
- key: percent-encoded path relative to full, as stored in manifests
- manifest: mapping of key to md5 hex digest for every regular file in full
- delta: keys classified as added, modified, or deleted between two manifests
- redd: package left in a superseded version: a delete list and an add
  tree holding the bytes needed to turn the next version back into this one
- journal: write-ahead record of a commit in progress
- staging dir: .vNNN.partial, a version under construction; never
  visible as a version until renamed into place

*/

package dflat
