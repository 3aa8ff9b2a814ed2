// Package waste holds the decision pipeline that runs after an image is
// uploaded: the image quality heuristic, arbitration between the label
// classifiers, the recyclability rule table with its eco-score, and the
// achievement and statistics bookkeeping over the classification log.
//
// Everything here except Tracker is a pure function of its inputs.
package waste
